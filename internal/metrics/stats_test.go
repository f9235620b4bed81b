package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gantry-build/gantry/api/v1"
)

func record(status v1.BuildStatus, configuration string, durationMS int64) v1.BuildRecord {
	return v1.BuildRecord{
		ProjectFile:   "/src/App/App.csproj",
		Configuration: configuration,
		Status:        status,
		DurationMS:    durationMS,
	}
}

func TestComputeEmptyHistory(t *testing.T) {
	s := Compute(nil)

	assert.Zero(t, s.Total)
	assert.Zero(t, s.SuccessRate)
	assert.Nil(t, s.LastBuild)
	assert.Empty(t, s.ByConfiguration)
	assert.Equal(t, "no builds recorded", s.Summary())
}

func TestComputeAggregates(t *testing.T) {
	// Newest first, matching the order the history store returns.
	records := []v1.BuildRecord{
		record(v1.BuildFailed, "release", 1000),
		record(v1.BuildSucceeded, "release", 3000),
		record(v1.BuildSucceeded, "debug", 2000),
		record(v1.BuildSucceeded, "release", 2000),
	}

	s := Compute(records)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 75.0, s.SuccessRate, 0.001)
	assert.Equal(t, 2*time.Second, s.AvgDuration)
	assert.Equal(t, time.Second, s.LastDuration)
	assert.Equal(t, map[string]int{"release": 3, "debug": 1}, s.ByConfiguration)

	require.NotNil(t, s.LastBuild)
	assert.Equal(t, v1.BuildFailed, s.LastBuild.Status)
}

func TestComputeLastBuildIsACopy(t *testing.T) {
	records := []v1.BuildRecord{record(v1.BuildSucceeded, "debug", 500)}

	s := Compute(records)
	records[0].Status = v1.BuildFailed

	assert.Equal(t, v1.BuildSucceeded, s.LastBuild.Status)
}

func TestSummary(t *testing.T) {
	s := Compute([]v1.BuildRecord{
		record(v1.BuildSucceeded, "release", 1500),
		record(v1.BuildFailed, "release", 500),
	})

	assert.Equal(t, "2 builds, 50.0% success, avg 1s, last 1.5s", s.Summary())
}
