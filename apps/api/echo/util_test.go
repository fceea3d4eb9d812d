package echoapi_test

import (
	"bytes"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/rollcall/apps/api/echo"
	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/student"
	"github.com/trezcool/rollcall/core/user"
	appfs "github.com/trezcool/rollcall/fs"
	"github.com/trezcool/rollcall/services/camera"
	imagingsvc "github.com/trezcool/rollcall/services/imaging"
	"github.com/trezcool/rollcall/services/recognition"
	dummydb "github.com/trezcool/rollcall/storage/database/dummy"
	"github.com/trezcool/rollcall/testutil"
)

// demo accounts of the seed fixtures
const (
	adminEmail   = "admin@example.com"
	adminPwd     = "Adm1n!Pass"
	teacherEmail = "teacher@example.com"
	teacherPwd   = "Te4cher!Pass"
	studentEmail = "student@example.com"
	studentPwd   = "Stud3nt!Pass"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	db       *dummydb.DB
	usrRepo  user.Repository
	registry *attendance.Registry
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := core.NewTestConfig()
	db := testutil.PrepareDB(t)

	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	classSvc := class.NewService(dummydb.NewClassRepository(db))
	studentSvc := student.NewService(dummydb.NewStudentRepository(db), classSvc)
	records := dummydb.NewAttendanceRepository(db)

	cands, err := recognition.LoadCandidates(appfs.FS, appfs.FixturesDir+"/recognition.yaml")
	require.NoError(t, err)

	registry := attendance.NewRegistry(
		attendance.Deps{
			Camera:     camera.NewVirtualSource(conf.Attendance),
			Images:     imagingsvc.NewSink(conf.Attendance),
			Classes:    classSvc,
			Recognizer: recognition.NewMock(0, cands),
			Sink:       records,
			Logger:     core.NopLogger{},
		},
		attendance.Options{RecognitionTimeout: conf.Attendance.RecognitionTimeout},
	)
	t.Cleanup(registry.CloseAll)

	server := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     core.NopLogger{},
		UserSvc:    usrSvc,
		ClassSvc:   classSvc,
		StudentSvc: studentSvc,
		Registry:   registry,
		Records:    records,
	})
	return &testApp{Server: server, db: db, usrRepo: usrRepo, registry: registry}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request carrying data as the `photo` file.
func newUploadRequest(t *testing.T, path, token, filename string, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("photo", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) login(t *testing.T, email, pwd string) string {
	t.Helper()
	rec := app.do(newRequest(http.MethodPost, "/v1/users/login", marshallObj(t, LoginRequest{Email: email, Password: pwd})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	decode(t, rec, &resp)
	return resp.Token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func pngPhoto(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(120, 90, color.NRGBA{R: 90, G: 140, B: 200, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		require.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}
