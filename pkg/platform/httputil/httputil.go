// Package httputil holds the shared JSON response writers handlers use.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "registro/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError renders a coded error as the JSON error envelope. Internal
// errors omit the description so store and backend details stay out of
// responses.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.Description = de.Message
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// WriteJSON renders v with the given status. Encoding failures are ignored;
// the header is already gone.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
