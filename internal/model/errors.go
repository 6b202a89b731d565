package model

import "fmt"

// SpanError is returned by an extraction callback to report an error that
// is embedded in an otherwise successful response (a 200 carrying an error
// payload). The populator records Code on the event and the handler marks
// the span status error; the wrapped call's own return values are never
// altered.
type SpanError struct {
	Code    string
	Message string
}

func (e *SpanError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("span error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("span error: %s", e.Message)
}
