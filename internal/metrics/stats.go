// Package metrics derives build statistics from recorded history for the
// history command and the TUI footer.
package metrics

import (
	"fmt"
	"time"

	v1 "github.com/gantry-build/gantry/api/v1"
)

// Stats summarises a run of build records.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int

	// SuccessRate is the share of succeeded builds in percent.
	SuccessRate float64

	// AvgDuration averages the recorded wall time across all builds.
	AvgDuration time.Duration

	// LastDuration and LastBuild describe the most recent record.
	LastDuration time.Duration
	LastBuild    *v1.BuildRecord

	// ByConfiguration counts builds per configuration name.
	ByConfiguration map[string]int
}

// Compute aggregates records into Stats. Records are expected newest-first,
// as the history store returns them.
func Compute(records []v1.BuildRecord) Stats {
	s := Stats{ByConfiguration: make(map[string]int)}
	if len(records) == 0 {
		return s
	}

	var totalMS int64
	for i := range records {
		rec := &records[i]
		s.Total++
		switch rec.Status {
		case v1.BuildSucceeded:
			s.Succeeded++
		case v1.BuildFailed:
			s.Failed++
		}
		totalMS += rec.DurationMS
		s.ByConfiguration[rec.Configuration]++
	}

	s.SuccessRate = float64(s.Succeeded) / float64(s.Total) * 100
	s.AvgDuration = time.Duration(totalMS/int64(s.Total)) * time.Millisecond

	last := records[0]
	s.LastBuild = &last
	s.LastDuration = time.Duration(last.DurationMS) * time.Millisecond
	return s
}

// Summary renders a one-line digest for footers and listings.
func (s Stats) Summary() string {
	if s.Total == 0 {
		return "no builds recorded"
	}
	return fmt.Sprintf("%d builds, %.1f%% success, avg %s, last %s",
		s.Total,
		s.SuccessRate,
		s.AvgDuration.Round(time.Millisecond),
		s.LastDuration.Round(time.Millisecond),
	)
}
