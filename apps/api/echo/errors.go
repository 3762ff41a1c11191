package echoapi

import (
	"net/http"

	"github.com/dgrijalva/jwt-go"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errInvalidToken       = echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	errExpiredToken       = echo.NewHTTPError(http.StatusUnauthorized, "token expired")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyAttempts    = echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
)

// tokenError maps a JWT middleware failure to an invalid or expired token error.
func tokenError(herr *echo.HTTPError) (*echo.HTTPError, bool) {
	if herr == middleware.ErrJWTMissing {
		return echo.NewHTTPError(http.StatusUnauthorized, herr.Message), true
	}
	vErr, ok := herr.Internal.(*jwt.ValidationError)
	if !ok {
		return nil, false
	}
	if vErr.Errors&jwt.ValidationErrorExpired != 0 {
		return errExpiredToken, true
	}
	return errInvalidToken, true
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch cause {
		case user.ErrInvalidCredentials:
			cause = echo.NewHTTPError(http.StatusUnauthorized, cause.Error())
		case user.ErrAccountDisabled:
			cause = errAccountDeactivated
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if tErr, ok := tokenError(origErr); ok {
				origErr = tErr
			} else if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields)+1)
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				if origErr.Err != nil {
					fldErrs["error"] = origErr.Error()
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.NotFoundError:
			code = http.StatusNotFound
			message = origErr.Error()
		case *core.ConflictError, *core.AlreadyProcessedError, *core.AlreadyClosedError:
			code = http.StatusConflict
			message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
				args = append(args, usr)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
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
