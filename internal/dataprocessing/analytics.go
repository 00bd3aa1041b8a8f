package dataprocessing

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/montanaflynn/stats"

	"cotpulse/pkg/contracts/domain"
)

// DefaultTrendWindow is the number of most recent weeks shown in a trend.
const DefaultTrendWindow = 12

// smaPeriod is the look-back of the moving average attached to trend points.
const smaPeriod = 4

// Overview summarizes a snapshot: how many assets are net long or net short
// and which one moved the most this week.
func Overview(records []domain.SnapshotRecord) domain.Overview {
	ov := domain.Overview{
		TotalCount:   len(records),
		MostActive:   "N/A",
		ActiveChange: "0",
	}

	best := -1.0
	for _, r := range records {
		switch {
		case r.NumNetPos > 0:
			ov.Bullish++
		case r.NumNetPos < 0:
			ov.Bearish++
		}
		if move := math.Abs(r.NumNetChange); move > best {
			best = move
			ov.MostActive = r.Commodity
			ov.ActiveChange = r.NetChange
		}
	}
	return ov
}

// RankByNet returns a copy of records ordered from most net long to most net
// short. Equal positions keep source order.
func RankByNet(records []domain.SnapshotRecord) []domain.SnapshotRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b domain.SnapshotRecord) int {
		return cmpFloat(b.NumNetPos, a.NumNetPos)
	})
	return out
}

// RankByExposure returns a copy of records ordered by gross exposure
// (|long| + |short|), smallest first.
func RankByExposure(records []domain.SnapshotRecord) []domain.SnapshotRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b domain.SnapshotRecord) int {
		return cmpFloat(exposure(a), exposure(b))
	})
	return out
}

func exposure(r domain.SnapshotRecord) float64 {
	return math.Abs(r.NumLong) + math.Abs(r.NumShort)
}

// SortKeys lists the column names accepted by SortSnapshot.
var SortKeys = []string{"commodity", "net", "net_change", "long", "long_change", "short", "short_change"}

var sortAccessors = map[string]func(domain.SnapshotRecord) float64{
	"net":          func(r domain.SnapshotRecord) float64 { return r.NumNetPos },
	"net_change":   func(r domain.SnapshotRecord) float64 { return r.NumNetChange },
	"long":         func(r domain.SnapshotRecord) float64 { return r.NumLong },
	"long_change":  func(r domain.SnapshotRecord) float64 { return r.NumLongChange },
	"short":        func(r domain.SnapshotRecord) float64 { return r.NumShort },
	"short_change": func(r domain.SnapshotRecord) float64 { return r.NumShortChange },
}

// SortSnapshot returns a copy of records sorted by key. "commodity" sorts by
// case-insensitive name; every other key sorts by the numeric column.
func SortSnapshot(records []domain.SnapshotRecord, key string, desc bool) ([]domain.SnapshotRecord, error) {
	var cmp func(a, b domain.SnapshotRecord) int
	if key == "commodity" {
		cmp = func(a, b domain.SnapshotRecord) int {
			return strings.Compare(strings.ToLower(a.Commodity), strings.ToLower(b.Commodity))
		}
	} else {
		get, ok := sortAccessors[key]
		if !ok {
			return nil, fmt.Errorf("unknown sort key %q", key)
		}
		cmp = func(a, b domain.SnapshotRecord) int { return cmpFloat(get(a), get(b)) }
	}

	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b domain.SnapshotRecord) int {
		if desc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
	return out, nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Trend turns the newest window weeks of a series (exports list the latest
// week first) into chronological points with week-over-week velocity and a
// four-week simple moving average. A window <= 0 uses DefaultTrendWindow.
func Trend(series domain.SeriesRecord, window int) []domain.TrendPoint {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	weeks := slices.Clone(series.Weeks[:min(window, len(series.Weeks))])
	slices.Reverse(weeks)

	points := make([]domain.TrendPoint, len(weeks))
	for i, w := range weeks {
		p := domain.TrendPoint{Label: w.Label, Position: w.Value, Original: w.Raw}
		if i > 0 {
			p.Velocity = w.Value - weeks[i-1].Value
		}
		if i >= smaPeriod-1 {
			sum := 0.0
			for _, prev := range weeks[i-smaPeriod+1 : i+1] {
				sum += prev.Value
			}
			sma := sum / smaPeriod
			p.SMA = &sma
		}
		points[i] = p
	}
	return points
}

// SeriesStats describes the distribution of a series' weekly values. The COT
// index places the latest value within the observed range on a 0-100 scale;
// a flat series scores 50. It returns nil for a series without weeks.
func SeriesStats(series domain.SeriesRecord) *domain.SeriesStats {
	data := stats.Float64Data(series.Values())
	if data.Len() == 0 {
		return nil
	}

	// stats only errors on empty input, which is ruled out above.
	mean, _ := stats.Mean(data)
	stdDev, _ := stats.StandardDeviation(data)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	median, _ := stats.Median(data)

	latest := data[0]
	index := 50.0
	if hi > lo {
		index = (latest - lo) / (hi - lo) * 100
	}

	return &domain.SeriesStats{
		Count:    data.Len(),
		Latest:   latest,
		Mean:     mean,
		StdDev:   stdDev,
		Min:      lo,
		Max:      hi,
		Median:   median,
		COTIndex: index,
	}
}
