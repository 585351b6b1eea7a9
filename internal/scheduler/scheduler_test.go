package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &countingJob{name: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestRunNowExecutesOutsideSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "refresh"}
	require.NoError(t, s.AddJob("@every 1h", job))

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)
}

func TestRunNowReportsJobError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "flaky", err: errors.New("feed down")}
	assert.Error(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)
}
