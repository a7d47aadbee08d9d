package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "idmanager/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope of every non-2xx API response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type httpMapping struct {
	status int
	code   string
}

var mappings = map[dErrors.Code]httpMapping{
	dErrors.CodeNotFound:           {http.StatusNotFound, "not_found"},
	dErrors.CodeAlreadyAccepted:    {http.StatusNotFound, "already_accepted"},
	dErrors.CodeBadRequest:         {http.StatusBadRequest, "bad_request"},
	dErrors.CodeValidation:         {http.StatusBadRequest, "validation_error"},
	dErrors.CodeConflict:           {http.StatusConflict, "conflict"},
	dErrors.CodeAlreadyRevoked:     {http.StatusConflict, "already_revoked"},
	dErrors.CodeConnectionNotReady: {http.StatusForbidden, "connection_not_ready"},
	dErrors.CodeAgent:              {http.StatusBadGateway, "agent_error"},
	dErrors.CodeTimeout:            {http.StatusGatewayTimeout, "agent_timeout"},
}

var internalError = httpMapping{http.StatusInternalServerError, "internal_error"}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // status already sent
}

// WriteError writes the envelope for err. Errors without a domain code are
// reported as internal_error with no description.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, internalError.status, ErrorResponse{Error: internalError.code})
		return
	}
	m := mapping(domainErr.Code)
	WriteJSON(w, m.status, ErrorResponse{Error: m.code, ErrorDescription: domainErr.Message})
}

func mapping(code dErrors.Code) httpMapping {
	if m, ok := mappings[code]; ok {
		return m
	}
	return internalError
}
