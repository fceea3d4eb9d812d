package echoapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/user"
)

type attendanceApi struct {
	usrSvc   *user.Service
	registry *attendance.Registry
	classes  attendance.ClassDirectory
	records  attendance.RecordStore
	reports  *attendance.Reports
	upgrader *websocket.Upgrader
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	wsJWT echo.MiddlewareFunc,
	usrSvc *user.Service,
	registry *attendance.Registry,
	classes attendance.ClassDirectory,
	records attendance.RecordStore,
	upgrader *websocket.Upgrader,
) {
	api := attendanceApi{
		usrSvc:   usrSvc,
		registry: registry,
		classes:  classes,
		records:  records,
		reports:  attendance.NewReports(records, classes),
		upgrader: upgrader,
	}
	active := activeUserMiddleware(usrSvc)

	ag := g.Group("/attendance")
	ag.GET("/events", api.events, wsJWT, active)

	ag = ag.Group("", jwt, active)
	ag.GET("/classes", api.listClasses)
	ag.POST("/manual", api.submitManual)
	roster := rosterMiddleware(usrSvc)
	ag.GET("/records", api.listRecords, roster)
	ag.GET("/reports", api.report, roster)
	ag.GET("/dashboard", api.dashboard, roster)

	sg := ag.Group("/session", api.sessionMiddleware)
	sg.GET("", api.snapshot)
	sg.DELETE("", api.close)
	sg.POST("/camera", api.startCamera)
	sg.DELETE("/camera", api.stopCamera)
	sg.POST("/capture", api.capture)
	sg.POST("/upload", api.upload)
	sg.POST("/retake", api.retake)
	sg.PUT("/class", api.selectClass)
	sg.POST("/process", api.process)
	sg.POST("/reset", api.reset)
	sg.POST("/submit", api.submit)
	sg.DELETE("/notice", api.dismissNotice)

	// registered after the group so it is not shadowed by the group's catch-all routes
	ag.POST("/session", api.open)
}

var contextWorkflowKey = "workflow"

// sessionMiddleware loads the open capture session of the authenticated user.
func (api *attendanceApi) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		w, err := api.registry.Get(usr.ID)
		if err != nil {
			return err
		}
		ctx.Set(contextWorkflowKey, w)
		return next(ctx)
	}
}

func contextWorkflow(ctx echo.Context) (*attendance.Workflow, error) {
	if w, ok := ctx.Get(contextWorkflowKey).(*attendance.Workflow); ok {
		return w, nil
	}
	return nil, attendance.ErrSessionNotFound
}

// withWorkflow runs fn on the session and answers with its snapshot.
func withWorkflow(ctx echo.Context, fn func(w *attendance.Workflow) error) error {
	w, err := contextWorkflow(ctx)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, w.Snapshot())
}

// Handlers

// open starts a capture session, or resumes the one already open.
func (api *attendanceApi) open(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	w := api.registry.Open(attendance.OperatorFromUser(usr))
	return ctx.JSON(http.StatusOK, w.Snapshot())
}

func (api *attendanceApi) snapshot(ctx echo.Context) error {
	return withWorkflow(ctx, func(*attendance.Workflow) error { return nil })
}

func (api *attendanceApi) close(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.registry.Close(usr.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) startCamera(ctx echo.Context) error {
	return withWorkflow(ctx, func(w *attendance.Workflow) error {
		return w.StartCamera(ctx.Request().Context())
	})
}

func (api *attendanceApi) stopCamera(ctx echo.Context) error {
	return withWorkflow(ctx, func(w *attendance.Workflow) error {
		w.StopCamera()
		return nil
	})
}

func (api *attendanceApi) capture(ctx echo.Context) error {
	return withWorkflow(ctx, func(w *attendance.Workflow) error {
		return w.CapturePhoto()
	})
}

// upload reads the `photo` file of a multipart form.
func (api *attendanceApi) upload(ctx echo.Context) error {
	return withWorkflow(ctx, func(w *attendance.Workflow) error {
		fh, err := ctx.FormFile(photoField)
		if err != nil {
			if errors.Cause(err) == http.ErrMissingFile {
				return attendance.ErrNoFile
			}
			return errors.Wrapf(attendance.ErrNoFile, "reading form file: %v", err)
		}
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening form file")
		}
		defer f.Close()
		return w.AcceptUpload(ctx.Request().Context(), fh.Filename, f)
	})
}

func (api *attendanceApi) retake(ctx echo.Context) error {
	return withWorkflow(ctx, func(w *attendance.Workflow) error {
		return w.Retake(ctx.Request().Context())
	})
}

func (api *attendanceApi) selectClass(ctx echo.Context) error {
	var data SelectClassRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectClassRequest")
	}
	return withWorkflow(ctx, func(w *attendance.Workflow) error {
		return w.SelectClass(ctx.Request().Context(), data.ClassID)
	})
}

func (api *attendanceApi) process(ctx echo.Context) error {
	return withWorkflow(ctx, func(w *attendance.Workflow) error {
		return w.Process(ctx.Request().Context())
	})
}

func (api *attendanceApi) reset(ctx echo.Context) error {
	return withWorkflow(ctx, func(w *attendance.Workflow) error {
		return w.Reset()
	})
}

func (api *attendanceApi) dismissNotice(ctx echo.Context) error {
	return withWorkflow(ctx, func(w *attendance.Workflow) error {
		w.DismissNotice()
		return nil
	})
}

func (api *attendanceApi) submit(ctx echo.Context) error {
	w, err := contextWorkflow(ctx)
	if err != nil {
		return err
	}
	rcpt, err := w.Submit(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, SubmitResponse{Receipt: rcpt, Session: w.Snapshot()})
}

// submitManual records one student by ID, outside of recognition.
func (api *attendanceApi) submitManual(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data attendance.ManualEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManualEntry")
	}

	w := api.registry.Open(attendance.OperatorFromUser(usr))
	rcpt, err := w.SubmitManual(ctx.Request().Context(), data.StudentID, data.ClassID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rcpt)
}

func (api *attendanceApi) listClasses(ctx echo.Context) error {
	classes, err := api.classes.ListClasses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *attendanceApi) listRecords(ctx echo.Context) error {
	var filter attendance.RecordFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Record{})
	}
	records, err := api.records.ListRecords(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing attendance records")
	}
	return ctx.JSON(http.StatusOK, records)
}

// report answers the attendance report as JSON, or as a CSV attachment with format=csv.
func (api *attendanceApi) report(ctx echo.Context) error {
	var filter attendance.ReportFilter
	if err := ctx.Bind(&filter); err != nil {
		return err
	}
	rep, err := api.reports.Report(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "building attendance report")
	}

	if ctx.QueryParam("format") != "csv" {
		return ctx.JSON(http.StatusOK, rep)
	}
	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="attendance-report.csv"`)
	resp.WriteHeader(http.StatusOK)
	return rep.WriteCSV(resp)
}

func (api *attendanceApi) dashboard(ctx echo.Context) error {
	dash, err := api.reports.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building attendance dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

const photoField = "photo"

type (
	SelectClassRequest struct {
		ClassID int `json:"class_id"`
	}

	SubmitResponse struct {
		Receipt attendance.Receipt  `json:"receipt"`
		Session attendance.Snapshot `json:"session"`
	}
)
