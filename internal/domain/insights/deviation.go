package insights

import (
	"github.com/shopspring/decimal"

	"github.com/visionscreen/presbyopia/internal/domain/screening"
)

// MetricKind names the compared metric.
type MetricKind string

const (
	MetricIncidence MetricKind = "incidence"
	MetricDiopter   MetricKind = "diopter"
)

// Deviation thresholds. A deviation is reported only when the absolute
// difference is strictly greater.
var (
	incidenceThreshold = decimal.NewFromInt(10)
	diopterThreshold   = decimal.RequireFromString("0.5")
)

// Deviation is a local age-band figure that differs notably from the global
// baseline.
type Deviation struct {
	AgeGroup       string     `json:"age_group"`
	Kind           MetricKind `json:"kind"`
	LocalValue     float64    `json:"local_value"`
	GlobalValue    float64    `json:"global_value"`
	Difference     float64    `json:"difference"`
	PercentageDiff *float64   `json:"percentage_diff,omitempty"`
}

// Report holds the deviations of one analysis, in baseline order.
type Report struct {
	IncidenceDeviations []Deviation `json:"incidence_deviations"`
	DiopterDeviations   []Deviation `json:"diopter_deviations"`
}

// WithinNormalRange is true when no deviation was found.
func (r Report) WithinNormalRange() bool {
	return len(r.IncidenceDeviations) == 0 && len(r.DiopterDeviations) == 0
}

// Total is the number of deviations of either kind.
func (r Report) Total() int {
	return len(r.IncidenceDeviations) + len(r.DiopterDeviations)
}

// Analyze compares local age-band summaries with the baseline. Baseline
// bands without a local summary are skipped.
func Analyze(local []screening.AgeGroupSummary, baseline []GlobalBaselineEntry) Report {
	byGroup := make(map[string]screening.AgeGroupSummary, len(local))
	for _, l := range local {
		byGroup[l.AgeGroup] = l
	}

	report := Report{
		IncidenceDeviations: []Deviation{},
		DiopterDeviations:   []Deviation{},
	}
	for _, g := range baseline {
		l, ok := byGroup[g.AgeGroup]
		if !ok {
			continue
		}

		if diff := difference(l.IncidenceRate, g.IncidenceRate); diff.Abs().GreaterThan(incidenceThreshold) {
			d := Deviation{
				AgeGroup:    g.AgeGroup,
				Kind:        MetricIncidence,
				LocalValue:  l.IncidenceRate,
				GlobalValue: g.IncidenceRate,
				Difference:  diff.InexactFloat64(),
			}
			if g.IncidenceRate != 0 {
				pct := diff.Div(decimal.NewFromFloat(g.IncidenceRate)).Mul(decimal.NewFromInt(100)).InexactFloat64()
				d.PercentageDiff = &pct
			}
			report.IncidenceDeviations = append(report.IncidenceDeviations, d)
		}

		if diff := difference(l.AverageDiopter, g.AverageDiopter); diff.Abs().GreaterThan(diopterThreshold) {
			report.DiopterDeviations = append(report.DiopterDeviations, Deviation{
				AgeGroup:    g.AgeGroup,
				Kind:        MetricDiopter,
				LocalValue:  l.AverageDiopter,
				GlobalValue: g.AverageDiopter,
				Difference:  diff.InexactFloat64(),
			})
		}
	}
	return report
}

// difference is local-global in decimal arithmetic so that values such as
// 2.5-2.0 compare exactly against the thresholds.
func difference(local, global float64) decimal.Decimal {
	return decimal.NewFromFloat(local).Sub(decimal.NewFromFloat(global))
}

// ComparisonPoint is one band of the local-vs-global series.
type ComparisonPoint struct {
	AgeGroup        string  `json:"age_group"`
	LocalIncidence  float64 `json:"local_incidence"`
	GlobalIncidence float64 `json:"global_incidence"`
	LocalDiopter    float64 `json:"local_diopter"`
	GlobalDiopter   float64 `json:"global_diopter"`
}

// Compare builds the series for every baseline band. Bands with no local
// data report zero local values.
func Compare(local []screening.AgeGroupSummary, baseline []GlobalBaselineEntry) []ComparisonPoint {
	byGroup := make(map[string]screening.AgeGroupSummary, len(local))
	for _, l := range local {
		byGroup[l.AgeGroup] = l
	}
	out := make([]ComparisonPoint, 0, len(baseline))
	for _, g := range baseline {
		p := ComparisonPoint{
			AgeGroup:        g.AgeGroup,
			GlobalIncidence: g.IncidenceRate,
			GlobalDiopter:   g.AverageDiopter,
		}
		if l, ok := byGroup[g.AgeGroup]; ok {
			p.LocalIncidence = l.IncidenceRate
			p.LocalDiopter = l.AverageDiopter
		}
		out = append(out, p)
	}
	return out
}
