package screening

import (
	"context"
	"fmt"
)

// RecordRepository is the append-only record store. Queries against an empty
// store return empty slices, not errors.
type RecordRepository interface {
	Insert(ctx context.Context, records []PatientRecord) error
	AgeWiseSummary(ctx context.Context, f Filter) ([]AgeGroupSummary, error)
	CitySummary(ctx context.Context) ([]CitySummary, error)
	DiopterDistribution(ctx context.Context, f Filter) ([]DiopterDistributionEntry, error)
	FilteredPatients(ctx context.Context, f Filter) ([]PatientRecord, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// checkBatch validates every record and rejects ids repeated inside the
// batch.
func checkBatch(records []PatientRecord) error {
	seen := make(map[int]struct{}, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return fmt.Errorf("record %d: %w", records[i].ID, err)
		}
		if _, dup := seen[records[i].ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, records[i].ID)
		}
		seen[records[i].ID] = struct{}{}
	}
	return nil
}
