package domain

import (
	"sort"
	"time"
)

// HistoryEntry is one recorded aggregate run.
type HistoryEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Executed  int                    `json:"executed"`
	Overall   *float64               `json:"overall,omitempty"`
	Modules   map[string]ModuleEntry `json:"modules"`
}

// ModuleEntry is one module's coverage at a point in time.
type ModuleEntry struct {
	Executed int     `json:"executed"`
	Total    int     `json:"total,omitempty"`
	Percent  float64 `json:"percent"`
	Status   Status  `json:"status"`
}

// Trend describes the change between two recorded runs.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Delta     float64        `json:"delta"`
	// Percent is false when Delta counts executed statements because one
	// of the runs had no statement totals.
	Percent bool `json:"percent"`
}

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// History contains all recorded entries, oldest first.
type History struct {
	Entries []HistoryEntry `json:"entries"`
}

// LatestEntry returns the most recent entry, or nil if empty.
func (h *History) LatestEntry() *HistoryEntry {
	if len(h.Entries) == 0 {
		return nil
	}
	latest := 0
	for i := 1; i < len(h.Entries); i++ {
		if h.Entries[i].Timestamp.After(h.Entries[latest].Timestamp) {
			latest = i
		}
	}
	return &h.Entries[latest]
}

// NewHistoryEntry snapshots a result.
func NewHistoryEntry(result Result, at time.Time) HistoryEntry {
	entry := HistoryEntry{
		Timestamp: at,
		Executed:  result.Executed(),
		Modules:   make(map[string]ModuleEntry, len(result.Modules)),
	}
	if overall, ok := result.OverallPercent(); ok {
		entry.Overall = &overall
	}
	for _, m := range result.Modules {
		entry.Modules[m.Module] = ModuleEntry{
			Executed: m.Executed,
			Total:    m.Total,
			Percent:  m.Percent,
			Status:   m.Status,
		}
	}
	return entry
}

// CalculateTrend classifies the change from previous to current. Changes
// within half a point are stable.
func CalculateTrend(previous, current float64) Trend {
	delta := Round1(current - previous)
	direction := TrendStable
	switch {
	case delta > 0.5:
		direction = TrendUp
	case delta < -0.5:
		direction = TrendDown
	}
	return Trend{Direction: direction, Delta: delta}
}

// Trend compares the two most recent entries. ok is false with fewer than
// two entries.
func (h *History) Trend() (trend Trend, ok bool) {
	if len(h.Entries) < 2 {
		return Trend{}, false
	}
	entries := make([]HistoryEntry, len(h.Entries))
	copy(entries, h.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	prev, curr := entries[len(entries)-2], entries[len(entries)-1]
	if prev.Overall != nil && curr.Overall != nil {
		trend = CalculateTrend(*prev.Overall, *curr.Overall)
		trend.Percent = true
		return trend, true
	}
	return CalculateTrend(float64(prev.Executed), float64(curr.Executed)), true
}
