package screening

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS patients (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	age INTEGER NOT NULL,
	aadhaar_id TEXT NOT NULL,
	occupation TEXT NOT NULL,
	gender TEXT NOT NULL,
	city TEXT NOT NULL,
	previous_glasses INTEGER NOT NULL,
	diopter_strength DOUBLE PRECISION NOT NULL
)`

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txCtxKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txCtxKey{}).(pgx.Tx)
	return tx
}

// RepoPG stores records in PostgreSQL.
type RepoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG wraps pool and ensures the patients table exists.
func NewRepoPG(ctx context.Context, pool *pgxpool.Pool) (*RepoPG, error) {
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("create patients table: %w", err)
	}
	return &RepoPG{pool: pool}, nil
}

// conn returns the transaction carried by ctx, or the pool.
func (r *RepoPG) conn(ctx context.Context) queryable {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *RepoPG) Insert(ctx context.Context, records []PatientRecord) error {
	if err := checkBatch(records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := r.conn(ctx).Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range records {
		batch.Queue(`
			INSERT INTO patients (`+patientCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Name, p.Age, p.AadhaarID, p.Occupation,
			string(p.Gender), p.City, boolToInt(p.PreviousGlasses), p.DiopterStrength)
	}

	br := tx.SendBatch(ctx, batch)
	for _, p := range records {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return fmt.Errorf("insert patient %d: %w", p.ID, err)
		}
		if tag.RowsAffected() == 0 {
			br.Close()
			return fmt.Errorf("%w: %d", ErrDuplicateID, p.ID)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func (r *RepoPG) AgeWiseSummary(ctx context.Context, f Filter) ([]AgeGroupSummary, error) {
	q := newPatientQuery(dollar, f)
	rows, err := r.conn(ctx).Query(ctx, q.AgeWiseSQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("age-wise summary: %w", err)
	}
	defer rows.Close()

	var raw []bandRow
	for rows.Next() {
		var br bandRow
		if err := rows.Scan(&br.label, &br.count, &br.sum); err != nil {
			return nil, fmt.Errorf("scan age group: %w", err)
		}
		raw = append(raw, br)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("age-wise summary: %w", err)
	}
	return assembleAgeWise(raw), nil
}

func (r *RepoPG) CitySummary(ctx context.Context) ([]CitySummary, error) {
	rows, err := r.conn(ctx).Query(ctx, citySQL)
	if err != nil {
		return nil, fmt.Errorf("city summary: %w", err)
	}
	defer rows.Close()

	items := []CitySummary{}
	for rows.Next() {
		var (
			cs  CitySummary
			sum float64
		)
		if err := rows.Scan(&cs.City, &cs.Count, &sum); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		cs.AverageDiopter = averageOf(sum, cs.Count)
		items = append(items, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("city summary: %w", err)
	}
	return items, nil
}

func (r *RepoPG) DiopterDistribution(ctx context.Context, f Filter) ([]DiopterDistributionEntry, error) {
	q := newPatientQuery(dollar, f)
	rows, err := r.conn(ctx).Query(ctx, q.DiopterSQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("diopter distribution: %w", err)
	}
	defer rows.Close()

	items := []DiopterDistributionEntry{}
	for rows.Next() {
		var e DiopterDistributionEntry
		if err := rows.Scan(&e.Diopter, &e.Count); err != nil {
			return nil, fmt.Errorf("scan diopter: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("diopter distribution: %w", err)
	}
	return items, nil
}

func (r *RepoPG) FilteredPatients(ctx context.Context, f Filter) ([]PatientRecord, error) {
	q := newPatientQuery(dollar, f)
	rows, err := r.conn(ctx).Query(ctx, q.PatientsSQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("filtered patients: %w", err)
	}
	defer rows.Close()

	items := []PatientRecord{}
	for rows.Next() {
		var (
			p       PatientRecord
			gender  string
			glasses int
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.AadhaarID, &p.Occupation,
			&gender, &p.City, &glasses, &p.DiopterStrength); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		p.Gender = Gender(gender)
		p.PreviousGlasses = glasses == 1
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("filtered patients: %w", err)
	}
	return items, nil
}

func (r *RepoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

// QueryMaps runs an arbitrary read query inside a read-only transaction and
// returns each row keyed by column name.
func (r *RepoPG) QueryMaps(ctx context.Context, query string) ([]map[string]interface{}, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only: %w", err)
	}
	defer tx.Rollback(ctx)
	ctx = withTx(ctx, tx)

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (r *RepoPG) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *RepoPG) Close() error {
	r.pool.Close()
	return nil
}

// Pool exposes the underlying pool for health reporting.
func (r *RepoPG) Pool() *pgxpool.Pool { return r.pool }
