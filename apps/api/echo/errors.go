package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/student"
	"github.com/trezcool/rollcall/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainErrors maps the errors of the core packages to HTTP status codes. First match wins.
var domainErrors = []struct {
	err  error
	code int
}{
	{user.ErrNotFound, http.StatusNotFound},
	{class.ErrNotFound, http.StatusNotFound},
	{student.ErrNotFound, http.StatusNotFound},
	{attendance.ErrSessionNotFound, http.StatusNotFound},

	{attendance.ErrNotPermitted, http.StatusForbidden},

	{attendance.ErrBusy, http.StatusConflict},
	{attendance.ErrInvalidTransition, http.StatusConflict},
	{attendance.ErrStaleResult, http.StatusConflict},
	{attendance.ErrSessionClosed, http.StatusConflict},
	{attendance.ErrCameraInactive, http.StatusConflict},
	{attendance.ErrNoFrameAvailable, http.StatusConflict},

	{attendance.ErrInvalidPrecondition, http.StatusBadRequest},
	{attendance.ErrNoFile, http.StatusBadRequest},
	{attendance.ErrDecode, http.StatusBadRequest},
	{attendance.ErrClassNotFound, http.StatusBadRequest},

	{attendance.ErrCameraUnavailable, http.StatusServiceUnavailable},
}

func domainErrorCode(err error) (int, bool) {
	var recErr *attendance.RecognitionError
	var subErr *attendance.SubmissionError
	if errors.As(err, &recErr) || errors.As(err, &subErr) {
		return http.StatusBadGateway, true
	}
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			return de.code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if dCode, ok := domainErrorCode(err); ok {
			code = dCode
			message = errors.Cause(err).Error()
			if dCode == http.StatusBadGateway {
				message = err.Error()
			}
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				code = http.StatusBadRequest
				message = core.TranslateValidationErrors(origErr, core.Translator)
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID, _ = strconv.Atoi(claims.Subject)
					usr.Name = claims.Name
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
