package emailsvc

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core"
	appfs "github.com/trezcool/rollcall/fs"
)

func receiptMessage(t *testing.T) *core.EmailMessage {
	t.Helper()
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "John Smith", Address: "teacher@example.com"}},
		Subject:      "Attendance receipt: Web Development (CS101)",
		TemplateName: "attendance_receipt",
		TemplateData: map[string]interface{}{
			"AppName":       "Roll Call",
			"OperatorName":  "John Smith",
			"ClassName":     "Web Development (CS101)",
			"ReceiptID":     "r-1",
			"Count":         5,
			"Matched":       3,
			"LowConfidence": 1,
			"Unmatched":     1,
		},
	}
	require.NoError(t, msg.Attach(strings.NewReader("student_id,name\nST1001,John Doe\n"), "records.csv", "text/csv"))
	return msg
}

func TestConsoleService_SendMessages(t *testing.T) {
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, core.NopLogger{})
	svc := NewConsoleServiceMock(core.NewTestConfig())

	svc.SendMessages(
		receiptMessage(t),
		&core.EmailMessage{Subject: "no recipient", BodyStr: "dropped"},
	)

	outbox := svc.Outbox()
	require.Len(t, outbox, 1)
	msg := outbox[0]
	assert.Contains(t, msg.TextContent, "Hi John Smith,")
	assert.Contains(t, msg.TextContent, "Attendance records have been submitted successfully!")
	assert.Contains(t, msg.TextContent, "Records: 5 (3 recognized, 1 low confidence, 1 not recognized)")
	assert.Contains(t, msg.HTMLContent, "<td>Web Development (CS101)</td>")
	assert.True(t, msg.HasAttachments())
}

func TestConsoleService_strictTemplates(t *testing.T) {
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, core.NopLogger{})
	svc := NewConsoleServiceMock(core.NewTestConfig())

	msg := receiptMessage(t)
	delete(msg.TemplateData.(map[string]interface{}), "ReceiptID")
	svc.SendMessages(msg)
	assert.Empty(t, svc.Outbox(), "missing template keys are errors")
}

func TestSendgridService_SendMessages(t *testing.T) {
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, core.NopLogger{})
	conf := core.NewTestConfig()
	conf.Email.SendgridApiKey = "SG.test"
	conf.Email.DefaultFromEmail = "noreply@rollcall.test"

	var reqs []rest.Request
	origAPIFunc := sendgridAPIFunc
	sendgridAPIFunc = func(req rest.Request) (*rest.Response, error) {
		reqs = append(reqs, req)
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}
	defer func() { sendgridAPIFunc = origAPIFunc }()

	svc := NewSendgridService(conf, core.NopLogger{})
	svc.sync = true
	svc.SendMessages(receiptMessage(t))

	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, rest.Method(http.MethodPost), req.Method)
	assert.Equal(t, "Bearer SG.test", req.Headers["Authorization"])

	var body struct {
		From struct {
			Email string `json:"email"`
		} `json:"from"`
		Personalizations []struct {
			Subject string `json:"subject"`
			To      []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
		Content []struct {
			Type string `json:"type"`
		} `json:"content"`
		Attachments []struct {
			Filename string `json:"filename"`
			Type     string `json:"type"`
		} `json:"attachments"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "noreply@rollcall.test", body.From.Email)
	require.Len(t, body.Personalizations, 1)
	assert.Equal(t, "[Roll Call] Attendance receipt: Web Development (CS101)", body.Personalizations[0].Subject)
	assert.Equal(t, "teacher@example.com", body.Personalizations[0].To[0].Email)
	assert.Len(t, body.Content, 2)
	require.Len(t, body.Attachments, 1)
	assert.Equal(t, "records.csv", body.Attachments[0].Filename)
}
