package report

import (
	"context"
	"errors"

	"flightlogger/pkg/flight"
)

// Multi delivers a report to every sink in order.
type Multi []flight.Sink

// Deliver implements flight.Sink. A failing sink does not stop the others.
func (m Multi) Deliver(ctx context.Context, r flight.Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
