// Package emailsvc delivers core.EmailMessage values, to the console or through Sendgrid.
package emailsvc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/edusys/core"
)

// maxConcurrentSends bounds the deliveries running at once for a single SendMessages call.
const maxConcurrentSends = 8

// deliverAll renders and delivers every message concurrently, then waits for all of them.
// Messages without recipients or content are skipped.
func deliverAll(messages []*core.EmailMessage, deliver func(msg core.EmailMessage) error) error {
	failures := make([]error, len(messages))

	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)
	for i, msg := range messages {
		i, msg := i, msg
		g.Go(func() error {
			if err := msg.Render(); err != nil {
				failures[i] = errors.Wrapf(err, "rendering email %q", msg.Subject)
				return nil
			}
			if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
				return nil
			}
			if err := deliver(*msg); err != nil {
				failures[i] = errors.Wrapf(err, "sending email %q to %s", msg.Subject, joinAddresses(msg.To))
			}
			return nil
		})
	}
	_ = g.Wait()

	return joinFailures(failures)
}

func joinFailures(failures []error) error {
	msgs := make([]string, 0)
	for _, err := range failures {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	switch len(msgs) {
	case 0:
		return nil
	case 1:
		return errors.New(msgs[0])
	}
	return fmt.Errorf("%d emails failed: %s", len(msgs), strings.Join(msgs, "; "))
}
