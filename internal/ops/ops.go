package ops

import "errors"

// ProgressEvent describes one step of an authentication attempt.
type ProgressEvent struct {
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Label   string `json:"label"`
	Status  string `json:"status"` // "running", "completed", "failed"
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProgressFunc is a callback for reporting progress. The CLI prints each
// event; tests record them.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(e ProgressEvent) {
	if f != nil {
		f(e)
	}
}

// Notice is a failure as the user sees it: one generic message, with the
// cause kept for logs and errors.Is.
type Notice struct {
	Message string
	Err     error
}

func (n *Notice) Error() string { return n.Message }
func (n *Notice) Unwrap() error { return n.Err }

// NoticeOf returns the user-facing message of err.
func NoticeOf(err error) string {
	var n *Notice
	if errors.As(err, &n) {
		return n.Message
	}
	return err.Error()
}
