package screening

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	cacheAgeWise  = "age"
	cacheCities   = "city"
	cacheDiopters = "diopter"
)

// Service owns the record store for one session. It loads the population
// once and serves cached aggregate views until the store is closed.
type Service struct {
	repo   RecordRepository
	cache  *cache.Cache
	logger zerolog.Logger

	mu          sync.Mutex
	initialized bool
	// generation changes whenever the loaded population does. A view is
	// cached only if the generation it was read under is still current.
	generation uint64
}

// NewService wraps repo. Views are cached for ttl; a non-positive ttl
// disables expiry.
func NewService(repo RecordRepository, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Service{
		repo:   repo,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Initialize bulk-loads the population. Calling it again after a successful
// load is a no-op that keeps the existing store.
func (s *Service) Initialize(ctx context.Context, records []PatientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		s.logger.Debug().Msg("record store already initialized")
		return nil
	}
	if err := s.repo.Insert(ctx, records); err != nil {
		return fmt.Errorf("initialize record store: %w", err)
	}
	s.initialized = true
	s.generation++
	s.cache.Flush()
	s.logger.Info().Int("records", len(records)).Msg("record store initialized")
	return nil
}

// Ready reports whether a population has been loaded.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Service) current() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation, s.initialized
}

func (s *Service) store(gen uint64, key string, v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized && s.generation == gen {
		s.cache.SetDefault(key, v)
	}
}

func (s *Service) AgeWiseSummary(ctx context.Context, f Filter) ([]AgeGroupSummary, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	key := cacheKey(cacheAgeWise, f.Key())
	if v, ok := s.cache.Get(key); ok {
		return v.([]AgeGroupSummary), nil
	}
	gen, ready := s.current()
	if !ready {
		return []AgeGroupSummary{}, nil
	}
	items, err := s.repo.AgeWiseSummary(ctx, f)
	if err != nil {
		return nil, err
	}
	s.store(gen, key, items)
	return items, nil
}

// CitySummary covers the whole population; it takes no filter.
func (s *Service) CitySummary(ctx context.Context) ([]CitySummary, error) {
	if v, ok := s.cache.Get(cacheCities); ok {
		return v.([]CitySummary), nil
	}
	gen, ready := s.current()
	if !ready {
		return []CitySummary{}, nil
	}
	items, err := s.repo.CitySummary(ctx)
	if err != nil {
		return nil, err
	}
	s.store(gen, cacheCities, items)
	return items, nil
}

func (s *Service) DiopterDistribution(ctx context.Context, f Filter) ([]DiopterDistributionEntry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	key := cacheKey(cacheDiopters, f.Key())
	if v, ok := s.cache.Get(key); ok {
		return v.([]DiopterDistributionEntry), nil
	}
	gen, ready := s.current()
	if !ready {
		return []DiopterDistributionEntry{}, nil
	}
	items, err := s.repo.DiopterDistribution(ctx, f)
	if err != nil {
		return nil, err
	}
	s.store(gen, key, items)
	return items, nil
}

// FilteredPatients is not cached; callers page or stream the result.
func (s *Service) FilteredPatients(ctx context.Context, f Filter) ([]PatientRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if !s.Ready() {
		return []PatientRecord{}, nil
	}
	return s.repo.FilteredPatients(ctx, f)
}

// TotalCount is the size of the loaded population.
func (s *Service) TotalCount(ctx context.Context) (int, error) {
	if !s.Ready() {
		return 0, nil
	}
	return s.repo.Count(ctx)
}

// Ping checks that the underlying store answers.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close tears down the store. The service reports no data afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.generation++
	s.cache.Flush()
	return s.repo.Close()
}

func cacheKey(prefix, key string) string {
	return prefix + ":" + key
}
