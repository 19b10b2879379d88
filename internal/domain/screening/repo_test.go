package screening

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// openRepos returns a fresh instance of every embedded store driver.
func openRepos(t *testing.T) map[string]RecordRepository {
	t.Helper()
	sqlite, err := OpenSQLiteRepo(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]RecordRepository{
		"sqlite": sqlite,
		"memory": NewMemoryRepo(),
	}
}

var repoFilters = []Filter{
	{},
	DefaultFilter(),
	{AgeMin: intp(35), AgeMax: intp(39)},
	{AgeMin: intp(75)},
	{City: "Chennai"},
	{Gender: "Male", Occupation: "Driver"},
	{AgeMin: intp(45), AgeMax: intp(64), City: "Mumbai", Gender: "Female"},
	{City: "Atlantis"},
}

func TestRepos_MatchInProcessAggregation(t *testing.T) {
	ctx := context.Background()
	records := NewSeededGenerator(21).Generate(1500)

	for name, repo := range openRepos(t) {
		t.Run(name, func(t *testing.T) {
			if err := repo.Insert(ctx, records); err != nil {
				t.Fatalf("insert: %v", err)
			}

			n, err := repo.Count(ctx)
			if err != nil || n != len(records) {
				t.Fatalf("count = %d, %v; want %d", n, err, len(records))
			}

			cities, err := repo.CitySummary(ctx)
			if err != nil {
				t.Fatalf("city summary: %v", err)
			}
			if diff := cmp.Diff(AggregateCities(records), cities); diff != "" {
				t.Errorf("city summary mismatch (-want +got):\n%s", diff)
			}

			for _, f := range repoFilters {
				groups, err := repo.AgeWiseSummary(ctx, f)
				if err != nil {
					t.Fatalf("age-wise %s: %v", f.Key(), err)
				}
				if diff := cmp.Diff(AggregateAgeWise(records, f), groups); diff != "" {
					t.Errorf("age-wise %s mismatch (-want +got):\n%s", f.Key(), diff)
				}

				dist, err := repo.DiopterDistribution(ctx, f)
				if err != nil {
					t.Fatalf("diopters %s: %v", f.Key(), err)
				}
				if diff := cmp.Diff(AggregateDiopters(records, f), dist); diff != "" {
					t.Errorf("diopters %s mismatch (-want +got):\n%s", f.Key(), diff)
				}

				patients, err := repo.FilteredPatients(ctx, f)
				if err != nil {
					t.Fatalf("patients %s: %v", f.Key(), err)
				}
				if diff := cmp.Diff(FilterRecords(records, f), patients); diff != "" {
					t.Errorf("patients %s mismatch (-want +got):\n%s", f.Key(), diff)
				}
			}
		})
	}
}

func TestRepos_EmptyStoreReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, repo := range openRepos(t) {
		t.Run(name, func(t *testing.T) {
			groups, err := repo.AgeWiseSummary(ctx, Filter{})
			if err != nil || groups == nil || len(groups) != 0 {
				t.Errorf("age-wise = %v, %v; want empty", groups, err)
			}
			cities, err := repo.CitySummary(ctx)
			if err != nil || cities == nil || len(cities) != 0 {
				t.Errorf("cities = %v, %v; want empty", cities, err)
			}
			dist, err := repo.DiopterDistribution(ctx, Filter{})
			if err != nil || dist == nil || len(dist) != 0 {
				t.Errorf("diopters = %v, %v; want empty", dist, err)
			}
			patients, err := repo.FilteredPatients(ctx, Filter{})
			if err != nil || patients == nil || len(patients) != 0 {
				t.Errorf("patients = %v, %v; want empty", patients, err)
			}
			if err := repo.Insert(ctx, nil); err != nil {
				t.Errorf("empty insert: %v", err)
			}
		})
	}
}

func TestRepos_RejectDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	records := NewSeededGenerator(4).Generate(10)

	for name, repo := range openRepos(t) {
		t.Run(name, func(t *testing.T) {
			if err := repo.Insert(ctx, records[:5]); err != nil {
				t.Fatalf("first insert: %v", err)
			}

			// records[4] was already stored; the whole batch must be refused.
			err := repo.Insert(ctx, records[4:])
			if !errors.Is(err, ErrDuplicateID) {
				t.Fatalf("expected ErrDuplicateID, got %v", err)
			}
			if n, _ := repo.Count(ctx); n != 5 {
				t.Errorf("count after rejected batch = %d, want 5", n)
			}

			dupInBatch := []PatientRecord{records[6], records[6]}
			if err := repo.Insert(ctx, dupInBatch); !errors.Is(err, ErrDuplicateID) {
				t.Errorf("expected ErrDuplicateID for in-batch duplicate, got %v", err)
			}
			if n, _ := repo.Count(ctx); n != 5 {
				t.Errorf("count after in-batch duplicate = %d, want 5", n)
			}
		})
	}
}

func TestRepos_RejectInvalidRecord(t *testing.T) {
	ctx := context.Background()
	for name, repo := range openRepos(t) {
		t.Run(name, func(t *testing.T) {
			batches := [][]PatientRecord{
				{{ID: 1, Age: 20, Gender: GenderMale, DiopterStrength: 1}},
				{{ID: 1, Age: 40, Gender: GenderMale, DiopterStrength: 3.3}},
				{{ID: 1, Age: 40, Gender: GenderMale, DiopterStrength: 1.1}},
				{{ID: 1, Age: 60, Gender: GenderFemale, DiopterStrength: 3.0}},
			}
			for _, bad := range batches {
				if err := repo.Insert(ctx, bad); err == nil {
					t.Errorf("expected validation error for %+v", bad[0])
				}
			}
			if n, _ := repo.Count(ctx); n != 0 {
				t.Errorf("count = %d, want 0", n)
			}
		})
	}
}

func TestSQLiteRepo_QueryMaps(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenSQLiteRepo(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()
	if err := repo.Insert(ctx, NewSeededGenerator(1).Generate(30)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := repo.QueryMaps(ctx, `SELECT COUNT(*) AS total FROM patients`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0]["total"] != int64(30) {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestPatientQuery_Placeholders(t *testing.T) {
	f := Filter{AgeMin: intp(40), City: "Pune", Gender: "Male"}

	q := newPatientQuery(dollar, f)
	if want := " WHERE age >= $1 AND city = $2 AND gender = $3"; q.Where() != want {
		t.Errorf("postgres where = %q, want %q", q.Where(), want)
	}
	if diff := cmp.Diff([]interface{}{40, "Pune", "Male"}, q.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	if got := newPatientQuery(questionMark, f).Where(); got != " WHERE age >= ? AND city = ? AND gender = ?" {
		t.Errorf("sqlite where = %q", got)
	}
	if got := newPatientQuery(questionMark, Filter{}).Where(); got != "" {
		t.Errorf("empty filter where = %q", got)
	}
}
