package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Jacob-Makopo/FileWhatwhat/store"
	"github.com/Jacob-Makopo/FileWhatwhat/upload"
)

// fieldErrors is a 400 response keyed by form field.
type fieldErrors map[string]string

func (f fieldErrors) Error() string {
	for k, v := range f {
		return k + ": " + v
	}
	return "invalid request"
}

// newHTTPErrorHandler maps errors to status codes. Anything unexpected is
// logged and reported as a 500.
func newHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message any
			httpErr *echo.HTTPError
			vErrs   validator.ValidationErrors
			fErrs   fieldErrors
		)

		switch {
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &vErrs):
			fields := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				fields[fe.Field()] = fe.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fields
		case errors.As(err, &fErrs):
			code = http.StatusBadRequest
			message = map[string]string(fErrs)
		case errors.Is(err, store.ErrNotFound):
			code = http.StatusNotFound
			message = "not found"
		case errors.Is(err, upload.ErrNoFiles), errors.Is(err, upload.ErrNoCompanies):
			code = http.StatusBadRequest
			message = err.Error()
		default:
			code = http.StatusInternalServerError
			message = http.StatusText(code)
			logger.Error("request failed", "method", ctx.Request().Method, "path", ctx.Path(), "err", err)
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			logger.Error("write error response", "err", err)
		}
	}
}
