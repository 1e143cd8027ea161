package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/api/response"
	"github.com/videotube/account-service/internal/core/domain"
)

const internalMessage = "internal server error"

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain errors to HTTP status codes by their kind.
//   - Logs internal causes without leaking details to the client.
//   - Renders the Err envelope: {"status", "message", "kind"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, kind, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = response.Error(c, code, string(kind), msg)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, domain.ErrorKind, string) {
	var de *domain.Error
	if errors.As(err, &de) {
		code := statusForKind(de.Kind)
		if de.Kind == domain.KindInternal {
			logUnhandled(log, c, err)
		}
		return code, de.Kind, de.Message
	}

	// Echo's own errors (bind failures, 404 from router, auth middleware).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		kind := kindForStatus(he.Code)
		if kind == domain.KindInternal {
			logUnhandled(log, c, err)
			return he.Code, kind, internalMessage
		}
		return he.Code, kind, fmt.Sprintf("%v", he.Message)
	}

	logUnhandled(log, c, err)
	return http.StatusInternalServerError, domain.KindInternal, internalMessage
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func kindForStatus(code int) domain.ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.KindAuth
	case code == http.StatusNotFound || code == http.StatusMethodNotAllowed:
		return domain.KindNotFound
	case code == http.StatusConflict:
		return domain.KindConflict
	case code >= 400 && code < 500:
		return domain.KindValidation
	default:
		return domain.KindInternal
	}
}

func logUnhandled(log zerolog.Logger, c echo.Context, err error) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")
}
