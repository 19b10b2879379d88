package screening

import (
	"fmt"
	"strings"
)

// placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

const patientCols = `id, name, age, aadhaar_id, occupation, gender, city,
	previous_glasses, diopter_strength`

// ageBandCase assigns each row its band label; ages outside every band map
// to NULL and are dropped by the grouping query.
var ageBandCase = func() string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, band := range AgeBands {
		fmt.Fprintf(&b, " WHEN age >= %d AND age <= %d THEN '%s'", band.Min, band.Max, band.Label)
	}
	b.WriteString(" END")
	return b.String()
}()

// patientQuery builds a WHERE clause from a Filter. Predicates are joined
// with AND.
type patientQuery struct {
	ph    placeholder
	where []string
	args  []interface{}
}

func newPatientQuery(ph placeholder, f Filter) *patientQuery {
	q := &patientQuery{ph: ph}
	if f.AgeMin != nil {
		q.add("age >= %s", *f.AgeMin)
	}
	if f.AgeMax != nil {
		q.add("age <= %s", *f.AgeMax)
	}
	if f.City != "" {
		q.add("city = %s", f.City)
	}
	if f.Gender != "" {
		q.add("gender = %s", f.Gender)
	}
	if f.Occupation != "" {
		q.add("occupation = %s", f.Occupation)
	}
	return q
}

func (q *patientQuery) add(clause string, arg interface{}) {
	q.args = append(q.args, arg)
	q.where = append(q.where, fmt.Sprintf(clause, q.ph(len(q.args))))
}

// Where returns the WHERE clause, or "" when no predicate is active.
func (q *patientQuery) Where() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q *patientQuery) Args() []interface{} { return q.args }

func (q *patientQuery) AgeWiseSQL() string {
	return `SELECT age_group, COUNT(*) AS total_count, SUM(diopter_strength) AS sum_diopter
		FROM (SELECT ` + ageBandCase + ` AS age_group, diopter_strength FROM patients` + q.Where() + `) banded
		WHERE age_group IS NOT NULL
		GROUP BY age_group`
}

func (q *patientQuery) DiopterSQL() string {
	return `SELECT diopter_strength, COUNT(*) AS count FROM patients` + q.Where() + `
		GROUP BY diopter_strength ORDER BY diopter_strength`
}

func (q *patientQuery) PatientsSQL() string {
	return `SELECT ` + patientCols + ` FROM patients` + q.Where() + ` ORDER BY id`
}

const citySQL = `SELECT city, COUNT(*) AS count, SUM(diopter_strength) AS sum_diopter
	FROM patients GROUP BY city ORDER BY count DESC, city`

const countSQL = `SELECT COUNT(*) FROM patients`

// bandRow is one raw row of the age-wise grouping query.
type bandRow struct {
	label string
	count int
	sum   float64
}

// assembleAgeWise orders raw band rows by band start and computes the
// rounded means.
func assembleAgeWise(rows []bandRow) []AgeGroupSummary {
	byBand := make([]*bandRow, len(AgeBands))
	for i := range rows {
		if idx := bandIndex(rows[i].label); idx >= 0 {
			byBand[idx] = &rows[i]
		}
	}
	out := []AgeGroupSummary{}
	for i, band := range AgeBands {
		r := byBand[i]
		if r == nil || r.count == 0 {
			continue
		}
		out = append(out, AgeGroupSummary{
			AgeGroup:       band.Label,
			TotalCount:     r.count,
			AverageDiopter: averageOf(r.sum, r.count),
			IncidenceRate:  IncidenceRate,
		})
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
