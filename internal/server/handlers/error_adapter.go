package handlers

import (
	"net/http"

	apperrors "github.com/npmwatch/npmwatch/internal/errors"
)

// ErrorResponder writes err to w as an error envelope.
type ErrorResponder func(http.ResponseWriter, *http.Request, error)

var httpErrorResponder ErrorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder routes handler failures through responder, letting
// the server own error rendering. A nil responder restores the default.
func SetHTTPErrorResponder(responder ErrorResponder) {
	if responder == nil {
		responder = apperrors.RespondWithError
	}
	httpErrorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
