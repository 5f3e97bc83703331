/*
analytics.go - Usage event aggregation

PURPOSE:
  Folds an append-only stream of usage events into per-template
  statistics and cross-template trend reports. All aggregation is a pure
  fold: no event is mutated, no event lands in more than one bucket of
  the same trend array, and results are fully reproducible from the same
  event set.

WINDOWING:
  Every aggregation is bounded to [now - windowDays, now]. Events outside
  the window are discarded before counting. Trend arrays bucket by
  integer day difference from "now", oldest bucket first.

SEE ALSO:
  - types.go: TemplateUsageStats, UsageAnalytics
  - store.go: EventStore supplies the event slices
*/
package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// defaultWindowDays applies when a caller passes a non-positive window.
const defaultWindowDays = 30

// Aggregator computes usage statistics. The zero value uses the wall
// clock; tests inject Now.
type Aggregator struct {
	Now func() time.Time
}

func (g *Aggregator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// =============================================================================
// PER-TEMPLATE STATS
// =============================================================================

// TemplateStats folds the events belonging to one template into counts,
// funnel rates, signature latency, and daily/weekly/monthly trends.
func (g *Aggregator) TemplateStats(id TemplateID, events []UsageEvent, windowDays int) TemplateUsageStats {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	now := g.now()
	windowStart := now.AddDate(0, 0, -windowDays)

	stats := TemplateUsageStats{
		TemplateID:   id,
		EventsByType: map[EventType]int{},
		Trends: Trends{
			Daily:   make([]int, windowDays),
			Weekly:  make([]int, bucketsFor(windowDays, 7)),
			Monthly: make([]int, bucketsFor(windowDays, 30)),
		},
	}

	users := map[UserID]bool{}
	createdAt := map[AgreementID]time.Time{}
	signedAt := map[AgreementID]time.Time{}

	for _, e := range events {
		if e.TemplateID != id || outsideWindow(e.OccurredAt, windowStart, now) {
			continue
		}
		stats.TotalEvents++
		stats.EventsByType[e.EventType]++
		if e.UserID != "" {
			users[e.UserID] = true
		}
		if e.AgreementID != "" {
			switch e.EventType {
			case EventAgreementCreated:
				createdAt[e.AgreementID] = e.OccurredAt
			case EventAgreementSigned:
				signedAt[e.AgreementID] = e.OccurredAt
			}
		}
		bucket(stats.Trends.Daily, now, e.OccurredAt, 1)
		bucket(stats.Trends.Weekly, now, e.OccurredAt, 7)
		bucket(stats.Trends.Monthly, now, e.OccurredAt, 30)
	}

	stats.UniqueUsers = len(users)
	stats.ConversionRate = rate(
		stats.EventsByType[EventAgreementCreated],
		stats.EventsByType[EventPreview])
	stats.AverageTimeToSignatureHours = averageSignatureHours(createdAt, signedAt)
	return stats
}

// averageSignatureHours averages (signed - created) over agreements that
// have both events; agreements missing either side are ignored.
func averageSignatureHours(createdAt, signedAt map[AgreementID]time.Time) decimal.Decimal {
	total := decimal.Zero
	pairs := 0
	for id, created := range createdAt {
		signed, ok := signedAt[id]
		if !ok || signed.Before(created) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(signed.Sub(created).Hours()))
		pairs++
	}
	if pairs == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(pairs))).Round(2)
}

// =============================================================================
// CROSS-TEMPLATE ANALYTICS
// =============================================================================

// Overview folds the whole event population into cross-template
// analytics. packageTypes maps templates to their category; events whose
// template is unknown still count everywhere except the per-type
// breakdown.
func (g *Aggregator) Overview(events []UsageEvent, packageTypes map[TemplateID]PackageType, windowDays int) UsageAnalytics {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	now := g.now()
	windowStart := now.AddDate(0, 0, -windowDays)

	analytics := UsageAnalytics{
		ByPackageType: map[PackageType]int{},
	}

	perTemplate := map[TemplateID]int{}
	perUser := map[UserID]map[TemplateID]bool{}
	perUserCount := map[UserID]int{}
	perDay := map[string]int{}
	var previews, created, signed int

	for _, e := range events {
		if outsideWindow(e.OccurredAt, windowStart, now) {
			continue
		}
		analytics.TotalEvents++
		perTemplate[e.TemplateID]++
		perDay[e.OccurredAt.UTC().Format("2006-01-02")]++
		if pt, ok := packageTypes[e.TemplateID]; ok {
			analytics.ByPackageType[pt]++
		}
		if e.UserID != "" {
			perUserCount[e.UserID]++
			if perUser[e.UserID] == nil {
				perUser[e.UserID] = map[TemplateID]bool{}
			}
			perUser[e.UserID][e.TemplateID] = true
		}
		switch e.EventType {
		case EventPreview:
			previews++
		case EventAgreementCreated:
			created++
		case EventAgreementSigned:
			signed++
		}
	}

	analytics.TopTemplates = topTemplates(perTemplate, 10)
	analytics.TopUsers = topUsers(perUserCount, perUser, 10)
	analytics.Funnel = FunnelMetrics{
		PreviewToAgreementRate:   rate(created, previews),
		AgreementToSignatureRate: rate(signed, created),
		AbandonmentRate:          rate(previews-created, previews),
	}

	// One point per day across the whole window, zero-filled, for charting.
	for i := windowDays; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).UTC().Format("2006-01-02")
		analytics.DailySeries = append(analytics.DailySeries, DailyPoint{
			Date:  date,
			Count: perDay[date],
		})
	}

	return analytics
}

func topTemplates(counts map[TemplateID]int, limit int) []TemplateCount {
	out := make([]TemplateCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, TemplateCount{TemplateID: id, Events: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Events != out[j].Events {
			return out[i].Events > out[j].Events
		}
		return out[i].TemplateID < out[j].TemplateID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topUsers(counts map[UserID]int, templates map[UserID]map[TemplateID]bool, limit int) []UserActivity {
	out := make([]UserActivity, 0, len(counts))
	for id, n := range counts {
		var tpls []TemplateID
		for t := range templates[id] {
			tpls = append(tpls, t)
		}
		sort.Slice(tpls, func(i, j int) bool { return tpls[i] < tpls[j] })
		out = append(out, UserActivity{UserID: id, Events: n, Templates: tpls})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Events != out[j].Events {
			return out[i].Events > out[j].Events
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// =============================================================================
// FOLD HELPERS
// =============================================================================

func outsideWindow(at, windowStart, now time.Time) bool {
	return at.Before(windowStart) || at.After(now)
}

// bucket increments the trend slot for an event. Index is the integer
// day difference from now divided by the bucket width; slot 0 is the
// oldest bucket. Events on the inclusive window boundary land in the
// oldest bucket, so the trend sums stay equal to the window totals.
func bucket(buckets []int, now, at time.Time, sizeDays int) {
	idx := int(now.Sub(at).Hours()/24) / sizeDays
	if idx < 0 {
		return
	}
	if idx >= len(buckets) {
		idx = len(buckets) - 1
	}
	buckets[len(buckets)-1-idx]++
}

// bucketsFor is the bucket count covering windowDays at the given width.
func bucketsFor(windowDays, sizeDays int) int {
	return (windowDays + sizeDays - 1) / sizeDays
}

// rate is numerator/denominator × 100, rounded to 2 decimal places and
// clamped to [0, 100]. Zero denominator yields 0.
func rate(num, den int) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	r := decimal.NewFromInt(int64(num)).Mul(hundred).
		Div(decimal.NewFromInt(int64(den))).Round(2)
	if r.IsNegative() {
		return decimal.Zero
	}
	if r.GreaterThan(hundred) {
		return hundred
	}
	return r
}
