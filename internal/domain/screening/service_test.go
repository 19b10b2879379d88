package screening

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// countingRepo counts store round trips.
type countingRepo struct {
	*MemoryRepo
	ageWise   atomic.Int32
	insertErr error
}

func (r *countingRepo) AgeWiseSummary(ctx context.Context, f Filter) ([]AgeGroupSummary, error) {
	r.ageWise.Add(1)
	return r.MemoryRepo.AgeWiseSummary(ctx, f)
}

func (r *countingRepo) Insert(ctx context.Context, records []PatientRecord) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.MemoryRepo.Insert(ctx, records)
}

func newTestService(t *testing.T) (*Service, *countingRepo) {
	t.Helper()
	repo := &countingRepo{MemoryRepo: NewMemoryRepo()}
	svc := NewService(repo, time.Minute, zerolog.Nop())
	t.Cleanup(func() { svc.Close() })
	return svc, repo
}

func TestService_InitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	records := NewSeededGenerator(3).Generate(100)

	if err := svc.Initialize(ctx, records); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := svc.Initialize(ctx, records); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if n, _ := svc.TotalCount(ctx); n != 100 {
		t.Errorf("total = %d, want 100", n)
	}
	if !svc.Ready() {
		t.Error("expected service to be ready")
	}
}

func TestService_InitializeFailure(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	repo.insertErr = errors.New("engine unavailable")

	err := svc.Initialize(ctx, NewSeededGenerator(3).Generate(10))
	if err == nil {
		t.Fatal("expected initialization error")
	}
	if svc.Ready() {
		t.Error("service should not be ready after a failed load")
	}

	groups, err := svc.AgeWiseSummary(ctx, Filter{})
	if err != nil || len(groups) != 0 {
		t.Errorf("degraded age-wise = %v, %v; want empty", groups, err)
	}
	if n, err := svc.TotalCount(ctx); err != nil || n != 0 {
		t.Errorf("degraded total = %d, %v; want 0", n, err)
	}
}

func TestService_CachesViewsPerFilter(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	if err := svc.Initialize(ctx, NewSeededGenerator(3).Generate(200)); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	f := Filter{City: "Pune"}
	first, err := svc.AgeWiseSummary(ctx, f)
	if err != nil {
		t.Fatalf("age-wise: %v", err)
	}
	second, _ := svc.AgeWiseSummary(ctx, Filter{City: "Pune"})
	if repo.ageWise.Load() != 1 {
		t.Errorf("expected one store query, got %d", repo.ageWise.Load())
	}
	if FilteredCount(first) != FilteredCount(second) {
		t.Error("cached view differs from original")
	}

	svc.AgeWiseSummary(ctx, Filter{City: "Delhi"})
	if repo.ageWise.Load() != 2 {
		t.Errorf("expected a second store query for a new filter, got %d", repo.ageWise.Load())
	}
}

func TestService_RejectsInvalidFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	bad := Filter{AgeMin: intp(10)}

	if _, err := svc.AgeWiseSummary(ctx, bad); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("age-wise: expected ErrInvalidFilter, got %v", err)
	}
	if _, err := svc.DiopterDistribution(ctx, bad); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("diopters: expected ErrInvalidFilter, got %v", err)
	}
	if _, err := svc.FilteredPatients(ctx, bad); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("patients: expected ErrInvalidFilter, got %v", err)
	}
}

func TestService_CloseEmptiesViews(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	if err := svc.Initialize(ctx, NewSeededGenerator(3).Generate(50)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	svc.CitySummary(ctx)

	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	cities, err := svc.CitySummary(ctx)
	if err != nil || len(cities) != 0 {
		t.Errorf("cities after close = %v, %v; want empty", cities, err)
	}
}

// blockingRepo parks AgeWiseSummary until release is closed.
type blockingRepo struct {
	*MemoryRepo
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRepo) AgeWiseSummary(ctx context.Context, f Filter) ([]AgeGroupSummary, error) {
	close(r.entered)
	<-r.release
	return r.MemoryRepo.AgeWiseSummary(ctx, f)
}

func TestService_InFlightQueryNotCachedAfterClose(t *testing.T) {
	ctx := context.Background()
	repo := &blockingRepo{
		MemoryRepo: NewMemoryRepo(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	svc := NewService(repo, time.Minute, zerolog.Nop())
	if err := svc.Initialize(ctx, NewSeededGenerator(5).Generate(40)); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	done := make(chan []AgeGroupSummary)
	go func() {
		items, _ := svc.AgeWiseSummary(ctx, Filter{})
		done <- items
	}()

	<-repo.entered
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(repo.release)
	if items := <-done; len(items) == 0 {
		t.Error("in-flight query should still return its result")
	}

	if n := svc.cache.ItemCount(); n != 0 {
		t.Errorf("cache holds %d views after close, want 0", n)
	}
	items, err := svc.AgeWiseSummary(ctx, Filter{})
	if err != nil || len(items) != 0 {
		t.Errorf("age-wise after close = %v, %v; want empty", items, err)
	}
}
