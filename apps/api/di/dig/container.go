package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/rollcall/apps/api/echo"
	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/student"
	"github.com/trezcool/rollcall/core/user"
	appfs "github.com/trezcool/rollcall/fs"
	"github.com/trezcool/rollcall/services/camera"
	emailsvc "github.com/trezcool/rollcall/services/email"
	imagingsvc "github.com/trezcool/rollcall/services/imaging"
	logsvc "github.com/trezcool/rollcall/services/logger"
	"github.com/trezcool/rollcall/services/recognition"
	"github.com/trezcool/rollcall/services/scheduler"
	"github.com/trezcool/rollcall/services/upload"
	dummydb "github.com/trezcool/rollcall/storage/database/dummy"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB opens the in-memory store and loads the demo roster into it.
func newDB(loggerParam DBLoggerParam) *dummydb.DB {
	db := dummydb.Open()
	if err := dummydb.Seed(db, appfs.FS, appfs.FixturesDir+"/seed.yaml"); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("seeding database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newStudentService(repo student.Repository, classes *class.Service) *student.Service {
	return student.NewService(repo, classes)
}

// newRecognizer calls the recognition service when one is configured, the canned mock otherwise.
func newRecognizer(conf *core.Config, logger core.Logger) (attendance.Recognizer, error) {
	if conf.Attendance.RecognitionURL != "" {
		return recognition.NewClient(conf.Attendance.RecognitionURL, conf.Attendance.RecognitionTimeout), nil
	}
	cands, err := recognition.LoadCandidates(appfs.FS, appfs.FixturesDir+"/recognition.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "loading mock candidates")
	}
	logger.Info(fmt.Sprintf("recognition: using mock (%d candidates)", len(cands)))
	return recognition.NewMock(conf.Attendance.MockRecognitionDelay, cands), nil
}

// newSink delivers records to the remote sink when one is configured, the record store otherwise.
func newSink(
	conf *core.Config,
	logger core.Logger,
	records attendance.RecordStore,
	classes *class.Service,
	mailSvc core.EmailService,
) attendance.Sink {
	var sink attendance.Sink = records
	if conf.Attendance.SinkURL != "" {
		sink = upload.NewSink(conf.Attendance.SinkURL, conf.Attendance.SinkTimeout)
	}
	if conf.Attendance.SendReceipts {
		sink = attendance.NewReceiptMailer(sink, classes, mailSvc, conf.AppName, logger)
	}
	return sink
}

func newRegistry(
	conf *core.Config,
	logger core.Logger,
	classes *class.Service,
	recognizer attendance.Recognizer,
	sink attendance.Sink,
) *attendance.Registry {
	return attendance.NewRegistry(
		attendance.Deps{
			Camera:     camera.NewVirtualSource(conf.Attendance),
			Images:     imagingsvc.NewSink(conf.Attendance),
			Classes:    classes,
			Recognizer: recognizer,
			Sink:       sink,
			Logger:     logger,
		},
		attendance.Options{
			Constraints: attendance.Constraints{
				Width:      conf.Attendance.CameraWidth,
				Height:     conf.Attendance.CameraHeight,
				FacingMode: attendance.DefaultConstraints.FacingMode,
			},
			RecognitionTimeout: conf.Attendance.RecognitionTimeout,
		},
	)
}

// newScheduler schedules the sweep of idle capture sessions.
func newScheduler(conf *core.Config, logger core.Logger, registry *attendance.Registry) (*scheduler.Scheduler, error) {
	s := scheduler.New(logger)
	err := s.Every(conf.Attendance.SweepSpec, "session sweep", func() {
		if n := registry.Sweep(conf.Attendance.SessionIdleTimeout); n > 0 {
			logger.Info(fmt.Sprintf("attendance: closed %d idle session(s)", n))
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(dummydb.NewUserRepository))
	must(c.Provide(dummydb.NewClassRepository))
	must(c.Provide(dummydb.NewStudentRepository))
	must(c.Provide(dummydb.NewAttendanceRepository))
	must(c.Provide(user.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(newStudentService))
	must(c.Provide(newRecognizer))
	must(c.Provide(newSink))
	must(c.Provide(newRegistry))
	must(c.Provide(newScheduler))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
