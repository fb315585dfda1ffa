package anki

import "fmt"

// ResponseError reports a failed or malformed AnkiConnect response. The
// full payload is carried along so the caller can log it verbatim.
type ResponseError struct {
	Action  string
	Reason  string
	Payload []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("anki %s: %s", e.Action, e.Reason)
}
