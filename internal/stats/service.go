// Package stats records client configuration reports and aggregates them.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kiranshivaraju/logsink/internal/store"
	"github.com/kiranshivaraju/logsink/pkg/models"
)

// Report is one client configuration submission.
type Report struct {
	CliType           string
	User              string
	Package           string
	ConfigurationInfo string
	IP                string
}

// Service records and aggregates configuration reports.
type Service struct {
	store    store.Store
	features []string
	now      func() time.Time
}

// NewService creates a Service that summarizes the given feature flags. A
// nil features slice selects DefaultFeatures.
func NewService(st store.Store, features []string) *Service {
	if features == nil {
		features = DefaultFeatures
	}
	return &Service{
		store:    st,
		features: features,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record appends a report. Reports are never deduplicated.
func (s *Service) Record(ctx context.Context, r Report) error {
	ip := r.IP
	if ip == "" {
		ip = "unknown"
	}
	rec := &models.StatisticsRecord{
		CliType:           r.CliType,
		User:              r.User,
		Package:           r.Package,
		ConfigurationInfo: r.ConfigurationInfo,
		IP:                ip,
		Time:              s.now(),
	}
	if err := s.store.CreateStatistics(ctx, rec); err != nil {
		return fmt.Errorf("recording statistics: %w", err)
	}
	return nil
}

// DailyCounts returns the number of reports per UTC day for cliType,
// oldest first.
func (s *Service) DailyCounts(ctx context.Context, cliType string) ([]models.DailyCount, error) {
	counts, err := s.store.DailyStatistics(ctx, cliType)
	if err != nil {
		return nil, fmt.Errorf("daily statistics: %w", err)
	}
	return counts, nil
}

// FeatureCount is how many devices in a group report a feature as supported.
type FeatureCount struct {
	Feature   string
	Supported int
}

// Percent is the supported share of devices, 0 when there are none.
func (f FeatureCount) Percent(devices int) float64 {
	if devices == 0 {
		return 0
	}
	return float64(f.Supported) / float64(devices) * 100
}

// SupportGroup summarizes the configured devices of one client type, or of
// all client types together.
type SupportGroup struct {
	CliType  string
	Devices  int
	Features []FeatureCount
}

// SupportSummary is the feature support picture across every stored report.
type SupportSummary struct {
	// Reports counts every stored row, configured or not.
	Reports int
	Overall SupportGroup
	// ByCliType is sorted by client type.
	ByCliType []SupportGroup
}

// Support walks every report and counts, per client type and overall, how
// many configured devices report each feature as true. Reports without a
// configuration blob only count toward Reports.
func (s *Service) Support(ctx context.Context) (*SupportSummary, error) {
	summary := &SupportSummary{}
	overall := newTally(s.features)
	byType := map[string]*tally{}

	err := s.store.EachConfiguration(ctx, func(cliType, info string) error {
		summary.Reports++
		if info == "" {
			return nil
		}
		flags := ParseConfiguration(info)
		overall.add(flags)
		t, ok := byType[cliType]
		if !ok {
			t = newTally(s.features)
			byType[cliType] = t
		}
		t.add(flags)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("support summary: %w", err)
	}

	summary.Overall = overall.group("all")
	types := make([]string, 0, len(byType))
	for k := range byType {
		types = append(types, k)
	}
	sort.Strings(types)
	for _, k := range types {
		summary.ByCliType = append(summary.ByCliType, byType[k].group(k))
	}
	return summary, nil
}

type tally struct {
	features []string
	devices  int
	counts   map[string]int
}

func newTally(features []string) *tally {
	return &tally{features: features, counts: make(map[string]int, len(features))}
}

func (t *tally) add(flags map[string]Value) {
	t.devices++
	for _, f := range t.features {
		if flags[f].True() {
			t.counts[f]++
		}
	}
}

func (t *tally) group(cliType string) SupportGroup {
	g := SupportGroup{CliType: cliType, Devices: t.devices}
	for _, f := range t.features {
		g.Features = append(g.Features, FeatureCount{Feature: f, Supported: t.counts[f]})
	}
	return g
}
