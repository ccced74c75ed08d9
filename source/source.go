// Package source collects activity records from the configured providers.
// Each provider is an Adapter; a failing adapter degrades to an empty
// contribution so one broken source never blanks the whole overview.
package source

import (
	"context"
	"fmt"
	"sort"

	"recap/workitem"
)

// Adapter lists the activity one provider observed in an inclusive day range.
type Adapter interface {
	// Name identifies the adapter in logs and collection errors.
	Name() string
	ListActivity(ctx context.Context, rng workitem.DateRange) ([]workitem.ActivityRecord, error)
}

// SourceError records one adapter that failed during collection.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// Collect gathers records from every adapter. Adapter failures are returned
// alongside the records from the adapters that succeeded; the error list is
// informational and never hides partial results.
func Collect(ctx context.Context, adapters []Adapter, rng workitem.DateRange) ([]workitem.ActivityRecord, []SourceError) {
	var (
		records []workitem.ActivityRecord
		errs    []SourceError
	)
	for _, adapter := range adapters {
		found, err := adapter.ListActivity(ctx, rng)
		if err != nil {
			errs = append(errs, SourceError{Source: adapter.Name(), Err: err})
			continue
		}
		records = append(records, found...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].ID < records[j].ID
	})
	return records, errs
}
