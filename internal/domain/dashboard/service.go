package dashboard

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/visionscreen/presbyopia/internal/domain/insights"
	"github.com/visionscreen/presbyopia/internal/domain/screening"
)

// View is everything the dashboard renders for one filter state.
type View struct {
	Filter              screening.Filter                     `json:"filter"`
	Filtered            bool                                 `json:"filtered"`
	TotalPatients       int                                  `json:"total_patients"`
	FilteredCount       int                                  `json:"filtered_count"`
	AgeGroups           []screening.AgeGroupSummary          `json:"age_groups"`
	Cities              []screening.CitySummary              `json:"cities"`
	DiopterDistribution []screening.DiopterDistributionEntry `json:"diopter_distribution"`
	Comparison          []insights.ComparisonPoint           `json:"comparison"`
	Insights            InsightsView                         `json:"insights"`
}

// InsightsView is the deviation report plus its derived state.
type InsightsView struct {
	insights.Report
	WithinNormalRange bool `json:"within_normal_range"`
	DeviationCount    int  `json:"deviation_count"`
}

func newInsightsView(r insights.Report) InsightsView {
	return InsightsView{Report: r, WithinNormalRange: r.WithinNormalRange(), DeviationCount: r.Total()}
}

// Service composes the screening views with the baseline analysis.
type Service struct {
	screening *screening.Service
	baseline  []insights.GlobalBaselineEntry
}

func NewService(svc *screening.Service) *Service {
	return &Service{screening: svc, baseline: insights.GlobalBaseline()}
}

// Baseline returns the reference table used for comparisons.
func (s *Service) Baseline() []insights.GlobalBaselineEntry {
	return s.baseline
}

// Insights analyses the age-wise view for f against the baseline.
func (s *Service) Insights(ctx context.Context, f screening.Filter) (InsightsView, error) {
	groups, err := s.screening.AgeWiseSummary(ctx, f)
	if err != nil {
		return InsightsView{}, err
	}
	return newInsightsView(insights.Analyze(groups, s.baseline)), nil
}

// Comparison returns the local-vs-global series for f.
func (s *Service) Comparison(ctx context.Context, f screening.Filter) ([]insights.ComparisonPoint, error) {
	groups, err := s.screening.AgeWiseSummary(ctx, f)
	if err != nil {
		return nil, err
	}
	return insights.Compare(groups, s.baseline), nil
}

// Build loads the three aggregate views concurrently and derives counts,
// comparison and insights from them. All views see the same filter.
func (s *Service) Build(ctx context.Context, f screening.Filter) (*View, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	v := &View{Filter: f, Filtered: !f.IsDefault()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		v.AgeGroups, err = s.screening.AgeWiseSummary(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		v.Cities, err = s.screening.CitySummary(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		v.DiopterDistribution, err = s.screening.DiopterDistribution(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		v.TotalPatients, err = s.screening.TotalCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v.FilteredCount = screening.FilteredCount(v.AgeGroups)
	v.Comparison = insights.Compare(v.AgeGroups, s.baseline)
	v.Insights = newInsightsView(insights.Analyze(v.AgeGroups, s.baseline))
	return v, nil
}
