package errs

import "net/http"

// envelope is the error body shape every non-2xx ManagementAPI response
// carries (§6C): {error: {type, code, message}}.
type envelope struct {
	Error envelopeBody `json:"error"`
}

type envelopeBody struct {
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatusAndEnvelope maps any error to its HTTP status code and JSON
// envelope body, via a single dispatch table keyed by the taxonomy's
// concrete types (§7). Unrecognized error types are treated as
// InternalError and mapped to 500, never leaking raw Go error text as a
// type name.
func StatusAndEnvelope(err error) (int, any) {
	switch e := err.(type) {
	case *ValidationError:
		return http.StatusBadRequest, newEnvelope("validation_error", http.StatusBadRequest, e.Error())
	case *NotFoundError:
		return http.StatusNotFound, newEnvelope("not_found", http.StatusNotFound, e.Error())
	case *StateError:
		return http.StatusConflict, newEnvelope("state_error", http.StatusConflict, e.Error())
	case *DependencyError:
		return http.StatusBadGateway, newEnvelope("dependency_error", http.StatusBadGateway, e.Error())
	case *TimeoutError:
		return http.StatusGatewayTimeout, newEnvelope("timeout_error", http.StatusGatewayTimeout, e.Error())
	case *InternalError:
		return http.StatusInternalServerError, newEnvelope("internal_error", http.StatusInternalServerError, e.Error())
	default:
		return http.StatusInternalServerError, newEnvelope("internal_error", http.StatusInternalServerError, "internal error")
	}
}

func newEnvelope(typ string, code int, msg string) envelope {
	return envelope{Error: envelopeBody{Type: typ, Code: code, Message: msg}}
}
