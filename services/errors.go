package services

import "net/http"

// Error taxonomy codes returned alongside every failed operation.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeValidation    = "VALIDATION_ERROR"
	CodeUpstream      = "UPSTREAM_ERROR"
	CodeInconsistency = "INTERNAL_INCONSISTENCY"
)

// ServiceError carries the HTTP status, taxonomy code and a human-readable
// message for an operation failure. Conflict errors on reserve also carry
// the blocking reservation's id when it could be determined.
type ServiceError struct {
	StatusCode            int    `json:"-"`
	Code                  string `json:"code"`
	Message               string `json:"message"`
	BlockingReservationID string `json:"blockingReservationID,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

func NotFoundError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

func ConflictError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusConflict, Code: CodeConflict, Message: message}
}

func ValidationError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Code: CodeValidation, Message: message}
}

func UpstreamError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadGateway, Code: CodeUpstream, Message: message}
}

// InconsistencyError marks detected state corruption (snapshot without a
// reservation, compensation failure). Surfaced, never silently repaired.
func InconsistencyError(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusInternalServerError, Code: CodeInconsistency, Message: message}
}
