package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/user"
	appfs "github.com/trezcool/rollcall/fs"
	"github.com/trezcool/rollcall/services/camera"
	imagingsvc "github.com/trezcool/rollcall/services/imaging"
	logsvc "github.com/trezcool/rollcall/services/logger"
	"github.com/trezcool/rollcall/services/recognition"
	"github.com/trezcool/rollcall/services/upload"
	dummydb "github.com/trezcool/rollcall/storage/database/dummy"
)

var logger core.Logger

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()

	rl := logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	rl.Enable(!conf.Debug)
	defer rl.Close()
	logger = rl

	// set up DB
	db := dummydb.Open()
	errAndDie(dummydb.Seed(db, appfs.FS, appfs.FixturesDir+"/seed.yaml"))

	classSvc := class.NewService(dummydb.NewClassRepository(db))
	registry, err := newRegistry(conf, db, classSvc)
	errAndDie(err)
	defer registry.CloseAll()

	// start CLI
	cli := commandLine{
		usrSvc:   user.NewService(dummydb.NewUserRepository(db)),
		classSvc: classSvc,
		registry: registry,
		out:      os.Stdout,
		styled:   isTerminalFunc(int(os.Stdout.Fd())),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		return 1
	}
	return 0
}

func newRegistry(conf *core.Config, db *dummydb.DB, classes *class.Service) (*attendance.Registry, error) {
	var recognizer attendance.Recognizer
	if conf.Attendance.RecognitionURL != "" {
		recognizer = recognition.NewClient(conf.Attendance.RecognitionURL, conf.Attendance.RecognitionTimeout)
	} else {
		cands, err := recognition.LoadCandidates(appfs.FS, appfs.FixturesDir+"/recognition.yaml")
		if err != nil {
			return nil, err
		}
		recognizer = recognition.NewMock(conf.Attendance.MockRecognitionDelay, cands)
	}

	var sink attendance.Sink = dummydb.NewAttendanceRepository(db)
	if conf.Attendance.SinkURL != "" {
		sink = upload.NewSink(conf.Attendance.SinkURL, conf.Attendance.SinkTimeout)
	}

	return attendance.NewRegistry(
		attendance.Deps{
			Camera:     camera.NewVirtualSource(conf.Attendance),
			Images:     imagingsvc.NewSink(conf.Attendance),
			Classes:    classes,
			Recognizer: recognizer,
			Sink:       sink,
			Logger:     logger,
		},
		attendance.Options{RecognitionTimeout: conf.Attendance.RecognitionTimeout},
	), nil
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
