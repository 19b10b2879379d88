package screening

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepo keeps records in a slice and aggregates them in process.
type MemoryRepo struct {
	mu      sync.RWMutex
	records []PatientRecord
	ids     map[int]struct{}
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{ids: make(map[int]struct{})}
}

func (r *MemoryRepo) Insert(_ context.Context, records []PatientRecord) error {
	if err := checkBatch(records); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range records {
		if _, dup := r.ids[p.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, p.ID)
		}
	}
	for _, p := range records {
		r.ids[p.ID] = struct{}{}
		r.records = append(r.records, p)
	}
	return nil
}

func (r *MemoryRepo) AgeWiseSummary(_ context.Context, f Filter) ([]AgeGroupSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return AggregateAgeWise(r.records, f), nil
}

func (r *MemoryRepo) CitySummary(_ context.Context) ([]CitySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return AggregateCities(r.records), nil
}

func (r *MemoryRepo) DiopterDistribution(_ context.Context, f Filter) ([]DiopterDistributionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return AggregateDiopters(r.records, f), nil
}

func (r *MemoryRepo) FilteredPatients(_ context.Context, f Filter) ([]PatientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return FilterRecords(r.records, f), nil
}

func (r *MemoryRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

func (r *MemoryRepo) Ping(context.Context) error { return nil }

func (r *MemoryRepo) Close() error { return nil }
