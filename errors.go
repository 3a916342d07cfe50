package clusterlink

import "strings"

// ErrorRecord is a single problem reported by the cloud API.
type ErrorRecord struct {
	ID         string
	Code       string
	Title      string
	Detail     string
	HTTPStatus int
}

// APIError is a batch of problems reported for one API request.
type APIError struct {
	Errors []ErrorRecord
}

func (e *APIError) Error() string {
	msg := e.Message()
	if msg == "" {
		return "cloud api error"
	}
	return "cloud api: " + msg
}

// Message joins the human-readable titles of all errors with ". ".
func (e *APIError) Message() string {
	if e == nil {
		return ""
	}
	titles := make([]string, 0, len(e.Errors))
	for _, rec := range e.Errors {
		titles = append(titles, rec.Title)
	}
	return strings.Join(titles, ". ")
}
