package httpx

import (
	"errors"
	"net/http"
)

// Generic sentinel errors for request-level failures shared across handlers.
var (
	ErrBadRequest = errors.New("bad request")
	ErrForbidden  = errors.New("forbidden")
)

// StatusMapper lets a domain error carry its own HTTP status.
type StatusMapper interface {
	HTTPStatus() int
}

// RespondError maps an error to an RFC7807 response. Domain packages map
// their closed error sets through handler-local switches; this is the
// fallback for request decoding and unknown failures.
func RespondError(w http.ResponseWriter, err error) {
	var sm StatusMapper
	switch {
	case errors.As(err, &sm):
		Problem(w, sm.HTTPStatus(), http.StatusText(sm.HTTPStatus()), err.Error())
	case errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
