package source

import (
	"context"
	"time"

	"recap/workitem"
)

// ManualStore is the slice of the storage layer the manual adapter needs.
type ManualStore interface {
	ListManualItems(from, to time.Time) ([]workitem.ActivityRecord, error)
}

// ManualAdapter serves manually entered work items from local storage.
type ManualAdapter struct {
	store ManualStore
}

func NewManualAdapter(store ManualStore) *ManualAdapter {
	return &ManualAdapter{store: store}
}

func (a *ManualAdapter) Name() string {
	return "manual"
}

func (a *ManualAdapter) ListActivity(ctx context.Context, rng workitem.DateRange) ([]workitem.ActivityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.store.ListManualItems(rng.From, rng.To)
}
