package screening

import (
	"sort"

	"github.com/shopspring/decimal"
)

// IncidenceRate is reported for every age band. Every stored record is a
// diagnosed case, so local incidence is saturated.
const IncidenceRate = 100.0

// AgeBand is one of the fixed aggregation bands. Max is inclusive.
type AgeBand struct {
	Label string
	Min   int
	Max   int
}

// AgeBands are ordered by start age. The last band is six years wide so that
// it absorbs the maximum age of 75.
var AgeBands = []AgeBand{
	{Label: "35-39", Min: 35, Max: 39},
	{Label: "40-44", Min: 40, Max: 44},
	{Label: "45-49", Min: 45, Max: 49},
	{Label: "50-54", Min: 50, Max: 54},
	{Label: "55-59", Min: 55, Max: 59},
	{Label: "60-64", Min: 60, Max: 64},
	{Label: "65-69", Min: 65, Max: 69},
	{Label: "70-75", Min: 70, Max: 75},
}

// BandFor returns the band containing age, or false when age is outside
// every band.
func BandFor(age int) (AgeBand, bool) {
	for _, b := range AgeBands {
		if age >= b.Min && age <= b.Max {
			return b, true
		}
	}
	return AgeBand{}, false
}

func bandIndex(label string) int {
	for i, b := range AgeBands {
		if b.Label == label {
			return i
		}
	}
	return -1
}

type accumulator struct {
	count int
	sum   decimal.Decimal
}

func (a *accumulator) add(v float64) {
	a.count++
	a.sum = a.sum.Add(decimal.NewFromFloat(v))
}

// mean rounds half-up to two decimal places.
func (a *accumulator) mean() float64 {
	if a.count == 0 {
		return 0
	}
	f, _ := a.sum.Div(decimal.NewFromInt(int64(a.count))).Round(2).Float64()
	return f
}

// AggregateAgeWise groups the records matching f into the fixed bands.
// Empty bands are omitted and records outside every band are dropped.
func AggregateAgeWise(records []PatientRecord, f Filter) []AgeGroupSummary {
	accs := make([]accumulator, len(AgeBands))
	for _, r := range records {
		if !f.Matches(r) {
			continue
		}
		b, ok := BandFor(r.Age)
		if !ok {
			continue
		}
		accs[bandIndex(b.Label)].add(r.DiopterStrength)
	}

	out := []AgeGroupSummary{}
	for i, b := range AgeBands {
		if accs[i].count == 0 {
			continue
		}
		out = append(out, AgeGroupSummary{
			AgeGroup:       b.Label,
			TotalCount:     accs[i].count,
			AverageDiopter: accs[i].mean(),
			IncidenceRate:  IncidenceRate,
		})
	}
	return out
}

// AggregateCities groups all records by city, largest first. Ties are broken
// by city name so output is stable.
func AggregateCities(records []PatientRecord) []CitySummary {
	accs := map[string]*accumulator{}
	for _, r := range records {
		a, ok := accs[r.City]
		if !ok {
			a = &accumulator{}
			accs[r.City] = a
		}
		a.add(r.DiopterStrength)
	}

	out := make([]CitySummary, 0, len(accs))
	for city, a := range accs {
		out = append(out, CitySummary{City: city, Count: a.count, AverageDiopter: a.mean()})
	}
	SortCities(out)
	return out
}

// SortCities orders city summaries by descending count, then by name.
func SortCities(cs []CitySummary) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Count != cs[j].Count {
			return cs[i].Count > cs[j].Count
		}
		return cs[i].City < cs[j].City
	})
}

// AggregateDiopters builds the histogram of exact diopter values for the
// records matching f, ascending by value.
func AggregateDiopters(records []PatientRecord, f Filter) []DiopterDistributionEntry {
	counts := map[float64]int{}
	for _, r := range records {
		if f.Matches(r) {
			counts[r.DiopterStrength]++
		}
	}

	out := make([]DiopterDistributionEntry, 0, len(counts))
	for d, n := range counts {
		out = append(out, DiopterDistributionEntry{Diopter: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Diopter < out[j].Diopter })
	return out
}

// FilterRecords returns the records matching f in ascending id order.
func FilterRecords(records []PatientRecord, f Filter) []PatientRecord {
	out := []PatientRecord{}
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FilteredCount sums the band counts of an age-wise view.
func FilteredCount(groups []AgeGroupSummary) int {
	total := 0
	for _, g := range groups {
		total += g.TotalCount
	}
	return total
}

// averageOf turns a SQL SUM/COUNT pair into a rounded mean using the same
// arithmetic as the in-process aggregation.
func averageOf(sum float64, count int) float64 {
	a := accumulator{count: count, sum: decimal.NewFromFloat(sum)}
	return a.mean()
}
