package httpx

import (
	"errors"
	"net/http"
)

// statusError is satisfied by domain sentinels that know their HTTP surface.
type statusError interface {
	error
	Title() string
	HTTPStatus() int
}

// RespondError maps engine errors to RFC7807 responses. Sentinels from the
// error taxonomy surface with their own status and title so admin clients can
// branch on them; anything unrecognised collapses to a 500 with no detail.
func RespondError(w http.ResponseWriter, err error) {
	var serr statusError
	if errors.As(err, &serr) {
		Problem(w, serr.HTTPStatus(), serr.Title(), err.Error())
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
