package echoapi_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/rollcall/apps/api/echo"
	"github.com/trezcool/rollcall/core/attendance"
)

func snapshotOf(t *testing.T, rec *httptest.ResponseRecorder) attendance.Snapshot {
	t.Helper()
	var snap attendance.Snapshot
	decode(t, rec, &snap)
	return snap
}

func Test_attendanceApi_uploadFlow(t *testing.T) {
	app := setup(t)
	token := app.login(t, teacherEmail, teacherPwd)
	path := func(p string) string { return "/v1/attendance/session" + p }

	// no session yet
	rec := app.do(newAuthRequest(http.MethodGet, path(""), token))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(newAuthRequest(http.MethodPost, path(""), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := snapshotOf(t, rec)
	assert.Equal(t, attendance.StepCapture, snap.Step)
	assert.Equal(t, attendance.FlowTeacher, snap.Flow)
	assert.True(t, snap.Capabilities.CanEnterManually)

	// processing needs an image and a class
	rec = app.do(newAuthRequest(http.MethodPost, path("/process"), token))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// not an image
	rec = app.do(newUploadRequest(t, path("/upload"), token, "notes.txt", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(newAuthRequest(http.MethodGet, path(""), token))
	assert.Equal(t, "Unable to read the selected file. Please choose a valid image.", snapshotOf(t, rec).Notice)

	// no file
	rec = app.do(newUploadRequest(t, path("/upload"), token, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(newUploadRequest(t, path("/upload"), token, "class.png", pngPhoto(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = snapshotOf(t, rec)
	assert.Equal(t, attendance.StepVerify, snap.Step)
	require.NotNil(t, snap.Image)
	assert.Equal(t, attendance.SourceUpload, snap.Image.Source)
	assert.Equal(t, 120, snap.Image.Width)
	assert.Empty(t, snap.Notice)

	// a second upload is out of step
	rec = app.do(newUploadRequest(t, path("/upload"), token, "class.png", pngPhoto(t)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(newAuthRequest(http.MethodPut, path("/class"), token, []byte(`{"class_id":42}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(newAuthRequest(http.MethodPut, path("/class"), token, []byte(`{"class_id":1}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, snapshotOf(t, rec).ClassID)

	rec = app.do(newAuthRequest(http.MethodPost, path("/process"), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = snapshotOf(t, rec)
	assert.Equal(t, attendance.StepResults, snap.Step)
	require.Len(t, snap.Results, 5)
	assert.Equal(t, attendance.StatusMatched, snap.Results[0].Status)
	assert.Equal(t, attendance.StatusLowConfidence, snap.Results[2].Status)
	assert.Equal(t, attendance.StatusUnmatched, snap.Results[3].Status)
	assert.Equal(t, &attendance.Summary{Total: 5, Matched: 3, LowConfidence: 1, Unmatched: 1}, snap.Summary)

	rec = app.do(newAuthRequest(http.MethodPost, path("/submit"), token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp SubmitResponse
	decode(t, rec, &resp)
	assert.Equal(t, 5, resp.Receipt.Count)
	assert.Equal(t, attendance.SubmittedMessage, resp.Receipt.Message)

	// the session starts over, keeping the receipt
	rec = app.do(newAuthRequest(http.MethodGet, path(""), token))
	snap = snapshotOf(t, rec)
	assert.Equal(t, attendance.StepCapture, snap.Step)
	assert.Nil(t, snap.Image)
	require.NotNil(t, snap.LastReceipt)
	assert.Equal(t, resp.Receipt.ID, snap.LastReceipt.ID)

	rec = app.do(newAuthRequest(http.MethodGet, "/v1/attendance/records?class_id=1", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var records []attendance.Record
	decode(t, rec, &records)
	assert.Len(t, records, 5)

	rec = app.do(newAuthRequest(http.MethodDelete, path(""), token))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(newAuthRequest(http.MethodGet, path(""), token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_attendanceApi_cameraFlow(t *testing.T) {
	app := setup(t)
	token := app.login(t, studentEmail, studentPwd)
	path := func(p string) string { return "/v1/attendance/session" + p }

	rec := app.do(newAuthRequest(http.MethodPost, path(""), token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, attendance.FlowStudent, snapshotOf(t, rec).Flow)

	// capture needs a live camera
	rec = app.do(newAuthRequest(http.MethodPost, path("/capture"), token))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(newAuthRequest(http.MethodPost, path("/camera"), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, snapshotOf(t, rec).CameraActive)

	rec = app.do(newAuthRequest(http.MethodPost, path("/capture"), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := snapshotOf(t, rec)
	assert.Equal(t, attendance.StepVerify, snap.Step)
	assert.False(t, snap.CameraActive)
	require.NotNil(t, snap.Image)
	assert.Equal(t, attendance.SourceCamera, snap.Image.Source)

	// students do not get the camera back on retake
	rec = app.do(newAuthRequest(http.MethodPost, path("/retake"), token))
	require.Equal(t, http.StatusOK, rec.Code)
	snap = snapshotOf(t, rec)
	assert.Equal(t, attendance.StepCapture, snap.Step)
	assert.False(t, snap.CameraActive)

	rec = app.do(newAuthRequest(http.MethodPost, path("/camera"), token))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(newAuthRequest(http.MethodDelete, path("/camera"), token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, snapshotOf(t, rec).CameraActive)

	rec = app.do(newAuthRequest(http.MethodPost, path("/reset"), token))
	require.Equal(t, http.StatusOK, rec.Code)

	// manual entry is for teachers
	rec = app.do(newAuthRequest(http.MethodPost, "/v1/attendance/manual", token, []byte(`{"student_id":"ST1001","class_id":1}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// and so are the records
	rec = app.do(newAuthRequest(http.MethodGet, "/v1/attendance/records", token))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_attendanceApi_manual(t *testing.T) {
	app := setup(t)
	token := app.login(t, teacherEmail, teacherPwd)

	tests := []httpTest{
		{name: "invalid", body: []byte(`{"student_id":"","class_id":1}`), wantCode: http.StatusBadRequest},
		{name: "unknown class", body: []byte(`{"student_id":"ST1001","class_id":42}`), wantCode: http.StatusBadRequest},
		{name: "recorded", body: []byte(`{"student_id":"ST1005","class_id":1}`), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(newAuthRequest(http.MethodPost, "/v1/attendance/manual", token, tt.body)))
		})
	}

	rec := app.do(newAuthRequest(http.MethodGet, "/v1/attendance/records?student_id=ST1005", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var records []attendance.Record
	decode(t, rec, &records)
	require.Len(t, records, 1)
	assert.True(t, records[0].Manual)
	assert.Equal(t, "Charlie Wilson", records[0].Name)
}

// submitRollCall runs a whole upload session for classID and submits it.
func submitRollCall(t *testing.T, app *testApp, token string, classID int) {
	t.Helper()
	path := func(p string) string { return "/v1/attendance/session" + p }
	steps := []struct {
		req      func() (*http.Request, *httptest.ResponseRecorder)
		wantCode int
	}{
		{func() (*http.Request, *httptest.ResponseRecorder) { return newAuthRequest(http.MethodPost, path(""), token) }, http.StatusOK},
		{func() (*http.Request, *httptest.ResponseRecorder) {
			return newUploadRequest(t, path("/upload"), token, "class.png", pngPhoto(t))
		}, http.StatusOK},
		{func() (*http.Request, *httptest.ResponseRecorder) {
			return newAuthRequest(http.MethodPut, path("/class"), token, marshallObj(t, SelectClassRequest{ClassID: classID}))
		}, http.StatusOK},
		{func() (*http.Request, *httptest.ResponseRecorder) { return newAuthRequest(http.MethodPost, path("/process"), token) }, http.StatusOK},
		{func() (*http.Request, *httptest.ResponseRecorder) { return newAuthRequest(http.MethodPost, path("/submit"), token) }, http.StatusCreated},
	}
	for _, s := range steps {
		rec := app.do(s.req())
		require.Equal(t, s.wantCode, rec.Code, rec.Body.String())
	}
}

func Test_attendanceApi_reports(t *testing.T) {
	app := setup(t)
	token := app.login(t, teacherEmail, teacherPwd)
	studentToken := app.login(t, studentEmail, studentPwd)

	submitRollCall(t, app, token, 1)
	rec := app.do(newAuthRequest(http.MethodPost, "/v1/attendance/manual", token, []byte(`{"student_id":"ST1004","class_id":1}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = app.do(newAuthRequest(http.MethodPost, "/v1/attendance/manual", token, []byte(`{"student_id":"ST1001","class_id":2}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	forbidden := []string{"/v1/attendance/reports", "/v1/attendance/reports?format=csv", "/v1/attendance/dashboard"}
	for _, path := range forbidden {
		t.Run("student "+path, func(t *testing.T) {
			rec := app.do(newAuthRequest(http.MethodGet, path, studentToken))
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}

	t.Run("all classes", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/attendance/reports?days=7", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rep attendance.Report
		decode(t, rec, &rep)
		assert.NotNil(t, rep.Since)
		assert.Equal(t, attendance.Totals{Records: 7, Present: 5, Unconfirmed: 1, Absent: 1, Rate: 71.4}, rep.Totals)
		assert.Len(t, rep.Classes, 4)
		require.Len(t, rep.Students, 5)
		assert.Equal(t, "ST1001", rep.Students[0].StudentID)
		assert.Equal(t, attendance.Totals{Records: 2, Present: 2, Rate: 100}, rep.Students[0].Totals)
		assert.Equal(t, "Alice Brown", rep.Students[3].Name)
		assert.Equal(t, attendance.Totals{Records: 2, Present: 1, Absent: 1, Rate: 50}, rep.Students[3].Totals)
	})

	t.Run("one class", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/attendance/reports?class_id=1", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rep attendance.Report
		decode(t, rec, &rep)
		assert.Nil(t, rep.Since)
		require.Len(t, rep.Classes, 1)
		assert.Equal(t, "CS101", rep.Classes[0].Code)
		assert.Equal(t, 2, rep.Classes[0].Sittings)
		assert.Equal(t, attendance.Totals{Records: 6, Present: 4, Unconfirmed: 1, Absent: 1, Rate: 66.7}, rep.Classes[0].Totals)
	})

	t.Run("csv", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/attendance/reports?class_id=1&format=csv", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="attendance-report.csv"`, rec.Header().Get("Content-Disposition"))
		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 7)
		assert.Equal(t, "kind,id,name,records,present,unconfirmed,absent,attendance_rate", lines[0])
		assert.Equal(t, "student,ST1003,Bob Johnson,1,0,1,0,0.0", lines[3])
		assert.Equal(t, "class,CS101,Web Development,6,4,1,1,66.7", lines[6])
	})

	t.Run("invalid filter", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/attendance/reports?class_id=abc", token))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("dashboard", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/attendance/dashboard", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var dash attendance.Dashboard
		decode(t, rec, &dash)
		assert.Equal(t, time.Now().UTC().Format("2006-01-02"), dash.Date)
		assert.Equal(t, 7, dash.Today.Records)
		assert.Len(t, dash.Classes, 4)
		require.Len(t, dash.Recent, attendance.RecentLimit)
		assert.True(t, dash.Recent[0].Manual)
		assert.Equal(t, "ST1001", dash.Recent[0].StudentID)
	})
}

func Test_attendanceApi_classes(t *testing.T) {
	app := setup(t)
	token := app.login(t, studentEmail, studentPwd)

	rec := app.do(newAuthRequest(http.MethodGet, "/v1/attendance/classes", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var classes []attendance.Class
	decode(t, rec, &classes)
	require.Len(t, classes, 4)
	assert.Equal(t, attendance.Class{ID: 1, Name: "Web Development", Code: "CS101"}, classes[0])
}

func Test_attendanceApi_events(t *testing.T) {
	app := setup(t)
	token := app.login(t, teacherEmail, teacherPwd)

	srv := httptest.NewServer(app)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/attendance/events?token="

	// no session to follow
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"bogus", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	rec := app.do(newAuthRequest(http.MethodPost, "/v1/attendance/session", token))
	require.Equal(t, http.StatusOK, rec.Code)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+token, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	readSnap := func() map[string]interface{} {
		var snap map[string]interface{}
		require.NoError(t, conn.ReadJSON(&snap))
		return snap
	}

	assert.Equal(t, "capture", readSnap()["step"])

	rec = app.do(newAuthRequest(http.MethodPost, "/v1/attendance/session/camera", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap map[string]interface{}
	for i := 0; i < 3; i++ { // the busy state may be reported first
		snap = readSnap()
		if snap["camera_active"] == true {
			break
		}
	}
	assert.Equal(t, true, snap["camera_active"])

	rec = app.do(newAuthRequest(http.MethodDelete, "/v1/attendance/session", token))
	require.Equal(t, http.StatusNoContent, rec.Code)
	for {
		snap = map[string]interface{}{}
		if err = conn.ReadJSON(&snap); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

