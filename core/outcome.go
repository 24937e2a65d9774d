package core

import "strings"

// Outcome carries the side effects of an operation whose state change is already committed.
// A failed side effect never undoes the change; it is reported as a warning instead.
type Outcome struct {
	NotifyErr  error
	PublishErr error
	CleanupErr error // stored files that could not be removed
}

func (o Outcome) OK() bool { return o.NotifyErr == nil && o.PublishErr == nil && o.CleanupErr == nil }

// Warning returns a message describing the failed side effects, or "" when all succeeded.
func (o Outcome) Warning() string {
	var failed []string
	if o.NotifyErr != nil {
		failed = append(failed, "notification e-mails could not be sent")
	}
	if o.PublishErr != nil {
		failed = append(failed, "the event could not be published")
	}
	if o.CleanupErr != nil {
		failed = append(failed, "some stored files could not be removed")
	}
	if len(failed) == 0 {
		return ""
	}
	return "saved, but " + strings.Join(failed, " and ")
}
