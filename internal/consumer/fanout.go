package consumer

import (
	"context"
	"errors"
)

// Fanout delivers each message to every handler in order. All handlers run
// even when one fails; the joined error is returned.
type Fanout []Handler

// Handle implements Handler.
func (f Fanout) Handle(ctx context.Context, msg Message) error {
	var errs error
	for _, h := range f {
		if err := h.Handle(ctx, msg); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
