// Package history provides time-series access to recorded datapoint values.
package history

import (
	"context"
	"time"
)

// Point is one recorded sample.
type Point struct {
	Val any   `json:"val"`
	TS  int64 `json:"ts"` // milliseconds since epoch
}

// Request describes one time-series query.
type Request struct {
	// Target is the canonical datapoint id.
	Target string

	// From and To bound the query window.
	From time.Time
	To   time.Time

	// Aggregate selects the window function (mean, min, max, last, ...).
	// Empty means raw samples.
	Aggregate string

	// Count caps the number of returned points. Zero means no cap.
	Count int

	// Step is the aggregation window width. Zero derives a width from the
	// range and Count.
	Step time.Duration
}

// Source serves time-series queries from a recording backend.
//
// The dispatcher consults a Source for the query and search commands when
// one is configured, falling back to current values otherwise.
type Source interface {
	// Query returns recorded samples for one datapoint.
	Query(ctx context.Context, req Request) ([]Point, error)

	// Targets lists the datapoint ids the backend has recordings for.
	Targets(ctx context.Context, pattern string) ([]string, error)
}
