package screening

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS patients (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	age INTEGER NOT NULL,
	aadhaar_id TEXT NOT NULL,
	occupation TEXT NOT NULL,
	gender TEXT NOT NULL,
	city TEXT NOT NULL,
	previous_glasses INTEGER NOT NULL,
	diopter_strength REAL NOT NULL
)`

// SQLiteRepo is the embedded record store backed by modernc.org/sqlite.
type SQLiteRepo struct {
	db *sql.DB
}

// OpenSQLiteRepo opens dsn (":memory:" for an ephemeral store) and creates
// the schema. The pool is pinned to a single connection so that an
// in-memory database outlives individual queries.
func OpenSQLiteRepo(ctx context.Context, dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create patients table: %w", err)
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Insert(ctx context.Context, records []PatientRecord) error {
	if err := checkBatch(records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patients (`+patientCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range records {
		res, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Age, p.AadhaarID, p.Occupation,
			string(p.Gender), p.City, boolToInt(p.PreviousGlasses), p.DiopterStrength)
		if err != nil {
			return fmt.Errorf("insert patient %d: %w", p.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert patient %d: %w", p.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %d", ErrDuplicateID, p.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) AgeWiseSummary(ctx context.Context, f Filter) ([]AgeGroupSummary, error) {
	q := newPatientQuery(questionMark, f)
	rows, err := r.db.QueryContext(ctx, q.AgeWiseSQL(), q.Args()...)
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

func (r *SQLiteRepo) CitySummary(ctx context.Context) ([]CitySummary, error) {
	rows, err := r.db.QueryContext(ctx, citySQL)
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

func (r *SQLiteRepo) DiopterDistribution(ctx context.Context, f Filter) ([]DiopterDistributionEntry, error) {
	q := newPatientQuery(questionMark, f)
	rows, err := r.db.QueryContext(ctx, q.DiopterSQL(), q.Args()...)
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

func (r *SQLiteRepo) FilteredPatients(ctx context.Context, f Filter) ([]PatientRecord, error) {
	q := newPatientQuery(questionMark, f)
	rows, err := r.db.QueryContext(ctx, q.PatientsSQL(), q.Args()...)
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

func (r *SQLiteRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

// QueryMaps runs an arbitrary read query and returns each row keyed by
// column name.
func (r *SQLiteRepo) QueryMaps(ctx context.Context, query string) ([]map[string]interface{}, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	results := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}
