package attendance

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core"
	appfs "github.com/trezcool/rollcall/fs"
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *recordingMailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

func TestReceiptMailer(t *testing.T) {
	f := newFixture()
	mailer := &recordingMailer{}
	sink := NewReceiptMailer(f.sink, f.classes, mailer, "Roll Call", core.NopLogger{})

	sub := Submission{SessionID: "s1", ClassID: 2, Operator: teacherOp, Records: ClassifyAll(mockCandidates)}
	rcpt, err := sink.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, 5, rcpt.Count)
	require.Len(t, f.sink.submissions, 1)

	require.Len(t, mailer.messages, 1)
	msg := mailer.messages[0]
	assert.Equal(t, "teacher@example.com", msg.To[0].Address)
	assert.Equal(t, "Attendance receipt: Database Systems (CS202)", msg.Subject)
	assert.Equal(t, receiptTemplate, msg.TemplateName)
	data := msg.TemplateData.(map[string]interface{})
	assert.Equal(t, 3, data["Matched"])
	assert.Equal(t, 1, data["LowConfidence"])
	assert.Equal(t, 1, data["Unmatched"])

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, core.NopLogger{})
	require.NoError(t, msg.Render())
	assert.Contains(t, msg.TextContent, "Hi John Smith,")
	assert.Contains(t, msg.TextContent, "Class: Database Systems (CS202)")
	assert.Contains(t, msg.HTMLContent, "Hi John Smith,")

	require.True(t, msg.HasAttachments())
	at := msg.Attachments[0]
	assert.Equal(t, "text/csv", at.ContentType)
	assert.Equal(t, "attendance-rcpt-1.csv", at.Filename)
	raw, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "student_id,name,confidence,status", lines[0])
	assert.Equal(t, "ST1003,Bob Johnson,0.72,low_confidence", lines[3])
}

func TestReceiptMailer_noMailOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		sinkErr error
		op      Operator
	}{
		{name: "sink failure", sinkErr: errBoom, op: teacherOp},
		{name: "operator without email", op: Operator{UserID: 9, Name: "Kiosk", Flow: FlowTeacher}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.sink.err = tt.sinkErr
			mailer := &recordingMailer{}
			sink := NewReceiptMailer(f.sink, f.classes, mailer, "Roll Call", core.NopLogger{})

			_, err := sink.Submit(context.Background(), Submission{ClassID: 1, Operator: tt.op})
			assert.Equal(t, tt.sinkErr, err)
			assert.Empty(t, mailer.messages)
		})
	}
}
