package events

import "context"

// Fanout appends each event to every sink. Every sink is attempted even when
// an earlier one fails; the first error is returned.
type Fanout []Store

func (f Fanout) Append(ctx context.Context, event Event) error {
	var first error
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
