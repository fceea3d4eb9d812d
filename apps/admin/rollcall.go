package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
)

var (
	sleepFunc      = time.Sleep // mockable
	captureTimeout = 5 * time.Second
)

type rollCallOptions struct {
	email     string
	password  string
	classCode string
	photo     string
	submit    bool
}

// rollCall runs one capture session end to end: image, class, recognition and, optionally, submission.
func (cli *commandLine) rollCall(opts rollCallOptions) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.Authenticate(opts.email, opts.password)
	if err != nil {
		return err
	}
	cls, err := cli.classByCode(opts.classCode)
	if err != nil {
		return err
	}

	w := cli.registry.Open(attendance.OperatorFromUser(usr))
	defer func() { _ = cli.registry.Close(usr.ID) }()
	if w.Snapshot().Step != attendance.StepCapture {
		if err := w.Reset(); err != nil {
			return errors.Wrap(err, "resetting session")
		}
	}

	if opts.photo != "" {
		err = cli.upload(ctx, w, opts.photo)
	} else {
		err = cli.capture(ctx, w)
	}
	if err != nil {
		return err
	}
	img := w.Snapshot().Image
	fmt.Fprintln(cli.out, cli.notice("image: %dx%d %s (%s)", img.Width, img.Height, img.ContentType, img.Source))

	if err := w.SelectClass(ctx, cls.ID); err != nil {
		return errors.Wrap(err, "selecting class")
	}
	fmt.Fprintln(cli.out, cli.notice("processing %s...", cls.Code))
	if err := w.Process(ctx); err != nil {
		return errors.Wrap(err, "processing image")
	}
	snap := w.Snapshot()
	cli.printResults(cls, snap)

	if !opts.submit {
		return nil
	}
	rcpt, err := w.Submit(ctx)
	if err != nil {
		return errors.Wrap(err, "submitting results")
	}
	fmt.Fprintf(cli.out, "\n%s (%d records, receipt %s)\n", rcpt.Message, rcpt.Count, rcpt.ID)
	return nil
}

func (cli *commandLine) classByCode(code string) (class.Class, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	classes, err := cli.classSvc.Filter(class.QueryFilter{Search: code})
	if err != nil {
		return class.Class{}, err
	}
	for _, c := range classes {
		if c.Code == code {
			return c, nil
		}
	}
	return class.Class{}, class.ErrNotFound
}

func (cli *commandLine) upload(ctx context.Context, w *attendance.Workflow, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening photo")
	}
	defer f.Close()
	return w.AcceptUpload(ctx, filepath.Base(path), f)
}

// capture starts the camera and takes a photo as soon as it delivers a frame.
func (cli *commandLine) capture(ctx context.Context, w *attendance.Workflow) error {
	if err := w.StartCamera(ctx); err != nil {
		return errors.Wrap(err, "starting camera")
	}
	deadline := time.Now().Add(captureTimeout)
	for {
		err := w.CapturePhoto()
		if err == nil {
			return nil
		}
		if !errors.Is(err, attendance.ErrNoFrameAvailable) || time.Now().After(deadline) {
			w.StopCamera()
			return errors.Wrap(err, "capturing photo")
		}
		sleepFunc(50 * time.Millisecond)
	}
}

func (cli *commandLine) printResults(cls class.Class, snap attendance.Snapshot) {
	fmt.Fprintln(cli.out, cli.title(fmt.Sprintf("%s %s", cls.Code, cls.Name)))

	rows := make([][]string, 0, len(snap.Results))
	for _, r := range snap.Results {
		rows = append(rows, []string{r.StudentID, r.Name, fmt.Sprintf("%.0f%%", r.Confidence*100), string(r.Status)})
	}
	tbl := cli.renderTable(
		[]string{"STUDENT ID", "NAME", "CONFIDENCE", "STATUS"},
		rows,
		func(row, col int) (lipgloss.Color, bool) {
			c, ok := statusColors[snap.Results[row].Status]
			return c, ok && col == 3
		},
	)
	fmt.Fprintln(cli.out, tbl)

	if s := snap.Summary; s != nil {
		fmt.Fprintln(cli.out, cli.notice(
			"\n%d recognized: %d matched, %d low confidence, %d unmatched",
			s.Total, s.Matched, s.LowConfidence, s.Unmatched,
		))
	}
}
