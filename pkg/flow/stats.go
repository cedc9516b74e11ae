package flow

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats accumulates per-run analysis counters. A Stats value belongs to one
// engine instance; callers that run many analyses merge the results explicitly
// rather than sharing a process-wide counter.
type Stats struct {
	Joins      int
	Promotions int
	Demotions  int
	Writes     int
	Reads      int

	// joinDrops records, per join, how many promotions the join discarded.
	joinDrops []float64
}

// NewStats returns an empty statistics accumulator.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) recordJoin(dropped int) {
	if s == nil {
		return
	}
	s.Joins++
	s.Demotions += dropped
	s.joinDrops = append(s.joinDrops, float64(dropped))
}

func (s *Stats) recordPromotion() {
	if s != nil {
		s.Promotions++
	}
}

func (s *Stats) recordWrite() {
	if s != nil {
		s.Writes++
	}
}

func (s *Stats) recordRead() {
	if s != nil {
		s.Reads++
	}
}

// Merge folds other into s.
func (s *Stats) Merge(other *Stats) {
	if other == nil {
		return
	}
	s.Joins += other.Joins
	s.Promotions += other.Promotions
	s.Demotions += other.Demotions
	s.Writes += other.Writes
	s.Reads += other.Reads
	s.joinDrops = append(s.joinDrops, other.joinDrops...)
}

// Summary holds aggregate measures over the recorded joins.
type Summary struct {
	Joins         int
	Promotions    int
	Demotions     int
	MeanJoinDrops float64
	P95JoinDrops  float64
}

// Summarize computes aggregate statistics for the run.
func (s *Stats) Summarize() Summary {
	out := Summary{Joins: s.Joins, Promotions: s.Promotions, Demotions: s.Demotions}
	if len(s.joinDrops) == 0 {
		return out
	}
	sorted := make([]float64, len(s.joinDrops))
	copy(sorted, s.joinDrops)
	sort.Float64s(sorted)
	out.MeanJoinDrops = stat.Mean(sorted, nil)
	out.P95JoinDrops = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return out
}
