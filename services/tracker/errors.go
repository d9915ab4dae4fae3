package tracker

import (
	"errors"
	"fmt"
)

// TransientError is a failure worth retrying: network errors, timeouts,
// 429 and 5xx responses.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("tracker: transient error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("tracker: transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is never retried: 4xx responses, missing or rejected
// credentials, undecodable bodies.
type PermanentError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *PermanentError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("tracker: permanent error (status %d): %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("tracker: permanent error: %s", msg)
}

func (e *PermanentError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// classifyStatus maps a non-2xx status code to the error taxonomy.
func classifyStatus(status int, body []byte) error {
	msg := apiMessage(body)
	if status == 429 || status >= 500 {
		return &TransientError{StatusCode: status, Err: errors.New(msg)}
	}
	return &PermanentError{StatusCode: status, Message: msg}
}
