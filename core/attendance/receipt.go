package attendance

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
)

const receiptTemplate = "attendance_receipt"

// ReceiptMailer is a Sink that emails the operator a receipt of every accepted submission.
type ReceiptMailer struct {
	sink    Sink
	classes ClassDirectory
	mailSvc core.EmailService
	appName string
	log     core.Logger
}

var _ Sink = (*ReceiptMailer)(nil)

func NewReceiptMailer(sink Sink, classes ClassDirectory, mailSvc core.EmailService, appName string, logger core.Logger) *ReceiptMailer {
	return &ReceiptMailer{
		sink:    sink,
		classes: classes,
		mailSvc: mailSvc,
		appName: appName,
		log:     logger,
	}
}

func (m *ReceiptMailer) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	rcpt, err := m.sink.Submit(ctx, sub)
	if err != nil {
		return rcpt, err
	}
	if sub.Operator.Email == "" {
		return rcpt, nil
	}

	msg, err := m.newReceiptMessage(ctx, sub, rcpt)
	if err != nil {
		// the records are in: a missing receipt is not a submission failure
		m.log.Error(fmt.Sprintf("attendance.ReceiptMailer(%s): %v", rcpt.ID, err), err)
		return rcpt, nil
	}
	m.mailSvc.SendMessages(msg)
	return rcpt, nil
}

func (m *ReceiptMailer) SubmitManual(ctx context.Context, entry ManualEntry) (Receipt, error) {
	return m.sink.SubmitManual(ctx, entry)
}

func (m *ReceiptMailer) newReceiptMessage(ctx context.Context, sub Submission, rcpt Receipt) (*core.EmailMessage, error) {
	className := "#" + strconv.Itoa(sub.ClassID)
	if classes, err := m.classes.ListClasses(ctx); err == nil {
		for _, c := range classes {
			if c.ID == sub.ClassID {
				className = fmt.Sprintf("%s (%s)", c.Name, c.Code)
				break
			}
		}
	}

	sum := Summarize(sub.Records)
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: sub.Operator.Name, Address: sub.Operator.Email}},
		Subject:      fmt.Sprintf("Attendance receipt: %s", className),
		TemplateName: receiptTemplate,
		TemplateData: map[string]interface{}{
			"AppName":       m.appName,
			"OperatorName":  sub.Operator.Name,
			"ClassName":     className,
			"ReceiptID":     rcpt.ID,
			"Count":         sum.Total,
			"Matched":       sum.Matched,
			"LowConfidence": sum.LowConfidence,
			"Unmatched":     sum.Unmatched,
		},
	}

	records, err := recordsCSV(sub.Records)
	if err != nil {
		return nil, errors.Wrap(err, "writing records csv")
	}
	if err := msg.Attach(records, "attendance-"+rcpt.ID+".csv", "text/csv"); err != nil {
		return nil, errors.Wrap(err, "attaching records")
	}
	return msg, nil
}

func recordsCSV(records []RecognitionRecord) (*bytes.Buffer, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.StudentID, r.Name, strconv.FormatFloat(r.Confidence, 'f', 2, 64), string(r.Status)})
	}
	var buf bytes.Buffer
	err := writeCSV(&buf, []string{"student_id", "name", "confidence", "status"}, rows)
	return &buf, err
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	_ = cw.Write(header)
	for _, r := range rows {
		_ = cw.Write(r)
	}
	cw.Flush()
	return cw.Error()
}
