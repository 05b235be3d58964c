package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
)

func punchIn(jobID, stageID, operator string) PunchInCommand {
	return PunchInCommand{JobID: jobID, StageID: stageID, OperatorName: operator}
}

func TestStageExecutionTracker_PunchIn_Refusals(t *testing.T) {
	ctx := context.Background()

	closed := scheduledJob("CLOSED", "TI1", 0, 4)
	closed.Status = domain.JobStatusCompleted

	tests := []struct {
		name   string
		setup  func(h *harness)
		cmd    PunchInCommand
		reason PunchFailure
	}{
		{
			name:   "missing operator",
			cmd:    punchIn("J1", "sls", "  "),
			reason: PunchInvalid,
		},
		{
			name:   "unknown job",
			cmd:    punchIn("NOPE", "sls", "alice"),
			reason: PunchNotFound,
		},
		{
			name:   "unknown stage",
			cmd:    punchIn("J1", "anneal", "alice"),
			reason: PunchNotFound,
		},
		{
			name:   "closed job checked after stage lookup",
			setup:  func(h *harness) { h.store.SeedJobs(closed) },
			cmd:    punchIn("CLOSED", "sls", "alice"),
			reason: PunchJobClosed,
		},
		{
			name: "stage already active",
			setup: func(h *harness) {
				res, err := h.tracker.PunchIn(ctx, punchIn("J1", "sls", "bob"))
				require.NoError(t, err)
				require.True(t, res.OK)
			},
			cmd:    punchIn("J1", "sls", "alice"),
			reason: PunchStageActive,
		},
		{
			name: "stage check precedes operator check",
			setup: func(h *harness) {
				res, err := h.tracker.PunchIn(ctx, punchIn("J1", "sls", "alice"))
				require.NoError(t, err)
				require.True(t, res.OK)
			},
			cmd:    punchIn("J1", "sls", "alice"),
			reason: PunchStageActive,
		},
		{
			name: "operator busy elsewhere",
			setup: func(h *harness) {
				res, err := h.tracker.PunchIn(ctx, punchIn("J2", "sls", "alice"))
				require.NoError(t, err)
				require.True(t, res.OK)
			},
			cmd:    punchIn("J1", "sls", "alice"),
			reason: PunchOperatorBusy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.store.SeedJobs(scheduledJob("J1", "TI1", 8, 12), scheduledJob("J2", "TI1", 12, 16))
			if tt.setup != nil {
				tt.setup(h)
			}

			res, err := h.tracker.PunchIn(ctx, tt.cmd)
			require.NoError(t, err)
			assert.False(t, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestStageExecutionTracker_PunchIn_StartsJob(t *testing.T) {
	h := newHarness()
	h.store.SeedJobs(scheduledJob("J1", "TI1", 8, 12))
	ctx := context.Background()

	res, err := h.tracker.PunchIn(ctx, PunchInCommand{JobID: "J1", StageID: "sls", OperatorName: " alice ", Notes: "plate 3"})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, "InProgress", res.JobStatus)
	require.NotNil(t, res.Execution)
	assert.Equal(t, "alice", res.Execution.OperatorName)
	assert.Equal(t, 4.0, res.Execution.EstimatedHours)
	assert.Equal(t, "plate 3", res.Execution.Notes)

	job, _ := h.store.Jobs().FindByID(ctx, "J1")
	assert.Equal(t, domain.JobStatusInProgress, job.Status)
	require.NotNil(t, job.ActualStart)
	assert.Equal(t, hour(8), *job.ActualStart)

	events := h.store.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "opcentrix.stage.punched-in", events[0].EventType())
	assert.Equal(t, "opcentrix.job.started", events[1].EventType())
}

func TestStageExecutionTracker_PunchOut(t *testing.T) {
	ctx := context.Background()

	t.Run("not active", func(t *testing.T) {
		h := newHarness()
		h.store.SeedJobs(scheduledJob("J1", "TI1", 8, 12))

		res, err := h.tracker.PunchOut(ctx, PunchOutCommand{JobID: "J1", StageID: "sls"})
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, PunchNotActive, res.Reason)
	})

	t.Run("intermediate stage keeps the job running", func(t *testing.T) {
		h := newHarness()
		h.store.SeedJobs(scheduledJob("J1", "TI1", 8, 12))

		_, err := h.tracker.PunchIn(ctx, punchIn("J1", "sls", "alice"))
		require.NoError(t, err)
		h.clock.Set(hour(11))

		res, err := h.tracker.PunchOut(ctx, PunchOutCommand{JobID: "J1", StageID: "sls", Notes: "good build"})
		require.NoError(t, err)
		require.True(t, res.OK)
		assert.False(t, res.JobCompleted)
		assert.Equal(t, "post", res.NextStageID)
		assert.Equal(t, "InProgress", res.JobStatus)
		require.NotNil(t, res.Execution.ActualHours)
		assert.InDelta(t, 3.0, *res.Execution.ActualHours, 1e-9)
		require.NotNil(t, res.Execution.VarianceHours)
		assert.InDelta(t, -1.0, *res.Execution.VarianceHours, 1e-9)

		machine, _ := h.store.Machines().FindByID(ctx, "TI1")
		assert.Equal(t, string(domain.MaterialTi64Grade5), machine.CurrentMaterial)

		// operator is free again
		res, err = h.tracker.PunchIn(ctx, punchIn("J1", "post", "alice"))
		require.NoError(t, err)
		assert.True(t, res.OK)
	})

	t.Run("last stage completes the job and loads its material", func(t *testing.T) {
		h := newHarness()
		j := scheduledJob("J1", "IN1", 8, 12)
		h.store.SeedJobs(j)

		_, err := h.tracker.PunchIn(ctx, punchIn("J1", "sls", "alice"))
		require.NoError(t, err)
		h.clock.Set(hour(12))
		_, err = h.tracker.PunchOut(ctx, PunchOutCommand{JobID: "J1", StageID: "sls"})
		require.NoError(t, err)

		_, err = h.tracker.PunchIn(ctx, punchIn("J1", "post", "bob"))
		require.NoError(t, err)
		h.clock.Set(hour(14))
		res, err := h.tracker.PunchOut(ctx, PunchOutCommand{JobID: "J1", StageID: "post"})
		require.NoError(t, err)
		require.True(t, res.OK)
		assert.True(t, res.JobCompleted)
		assert.Equal(t, "Completed", res.JobStatus)
		assert.Empty(t, res.NextStageID)

		job, _ := h.store.Jobs().FindByID(ctx, "J1")
		assert.Equal(t, domain.JobStatusCompleted, job.Status)
		require.NotNil(t, job.ActualEnd)
		assert.Equal(t, hour(14), *job.ActualEnd)

		machine, _ := h.store.Machines().FindByID(ctx, "IN1")
		assert.Equal(t, string(domain.MaterialTi64Grade5), machine.CurrentMaterial)

		var changed *domain.MaterialChangedEvent
		for _, e := range h.store.Events() {
			if mc, ok := e.(*domain.MaterialChangedEvent); ok {
				changed = mc
			}
		}
		require.NotNil(t, changed)
		assert.Equal(t, string(domain.MaterialInconel718), changed.FromMaterial)
		assert.Equal(t, 180, changed.ChangeoverMinutes)
		assert.Equal(t, "J1", changed.CausedByJobID)

		// completed job refuses further work
		res, err = h.tracker.PunchIn(ctx, punchIn("J1", "sls", "carol"))
		require.NoError(t, err)
		assert.Equal(t, PunchJobClosed, res.Reason)
	})

	t.Run("last stage waits for stages still in progress", func(t *testing.T) {
		h := newHarness()
		h.store.SeedJobs(scheduledJob("J1", "IN1", 8, 12))

		_, err := h.tracker.PunchIn(ctx, punchIn("J1", "sls", "alice"))
		require.NoError(t, err)
		_, err = h.tracker.PunchIn(ctx, punchIn("J1", "post", "bob"))
		require.NoError(t, err)

		h.clock.Set(hour(10))
		res, err := h.tracker.PunchOut(ctx, PunchOutCommand{JobID: "J1", StageID: "post"})
		require.NoError(t, err)
		require.True(t, res.OK)
		assert.False(t, res.JobCompleted)
		assert.Equal(t, "InProgress", res.JobStatus)

		job, _ := h.store.Jobs().FindByID(ctx, "J1")
		assert.Equal(t, domain.JobStatusInProgress, job.Status)
		assert.Nil(t, job.ActualEnd)
		machine, _ := h.store.Machines().FindByID(ctx, "IN1")
		assert.Equal(t, string(domain.MaterialInconel718), machine.CurrentMaterial)

		h.clock.Set(hour(12))
		res, err = h.tracker.PunchOut(ctx, PunchOutCommand{JobID: "J1", StageID: "sls"})
		require.NoError(t, err)
		require.True(t, res.OK)
		assert.True(t, res.JobCompleted)
		assert.Equal(t, "Completed", res.JobStatus)
		assert.Empty(t, res.NextStageID)

		job, _ = h.store.Jobs().FindByID(ctx, "J1")
		assert.Equal(t, domain.JobStatusCompleted, job.Status)
		machine, _ = h.store.Machines().FindByID(ctx, "IN1")
		assert.Equal(t, string(domain.MaterialTi64Grade5), machine.CurrentMaterial)
	})

	t.Run("completion before start is flagged for review", func(t *testing.T) {
		h := newHarness()
		h.store.SeedJobs(scheduledJob("J1", "TI1", 8, 12))

		h.clock.Set(hour(10))
		_, err := h.tracker.PunchIn(ctx, punchIn("J1", "sls", "alice"))
		require.NoError(t, err)
		h.clock.Set(hour(9))

		res, err := h.tracker.PunchOut(ctx, PunchOutCommand{JobID: "J1", StageID: "sls"})
		require.NoError(t, err)
		require.True(t, res.OK)
		require.NotNil(t, res.Execution.ActualHours)
		assert.Equal(t, 0.0, *res.Execution.ActualHours)
		assert.True(t, res.Execution.NeedsReview)
		assert.Equal(t, domain.ReviewClockSkew, res.Execution.ReviewReason)
	})

	t.Run("part without routing completes on first punch out", func(t *testing.T) {
		h := newHarness()
		j := scheduledJob("J1", "TI1", 8, 12)
		j.PartID = "UNROUTED"
		h.store.SeedJobs(j)

		_, err := h.tracker.PunchIn(ctx, punchIn("J1", "sls", "alice"))
		require.NoError(t, err)
		res, err := h.tracker.PunchOut(ctx, PunchOutCommand{JobID: "J1", StageID: "sls"})
		require.NoError(t, err)
		assert.True(t, res.JobCompleted)
	})
}

func TestStageExecutionTracker_ConcurrentPunchIn(t *testing.T) {
	ctx := context.Background()

	t.Run("one operator wins a stage", func(t *testing.T) {
		h := newHarness()
		h.store.SeedJobs(scheduledJob("J1", "TI1", 8, 12))

		const n = 16
		results := make([]*PunchResult, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = h.tracker.PunchIn(ctx, punchIn("J1", "sls", fmt.Sprintf("op-%d", i)))
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, r := range results {
			require.NotNil(t, r)
			if r.OK {
				ok++
			} else {
				assert.Equal(t, PunchStageActive, r.Reason)
			}
		}
		assert.Equal(t, 1, ok)
	})

	t.Run("one stage per operator", func(t *testing.T) {
		h := newHarness()
		const n = 8
		for i := 0; i < n; i++ {
			h.store.SeedJobs(scheduledJob(fmt.Sprintf("J%d", i), "TI1", i*4, i*4+4))
		}

		results := make([]*PunchResult, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = h.tracker.PunchIn(ctx, punchIn(fmt.Sprintf("J%d", i), "sls", "alice"))
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, r := range results {
			require.NotNil(t, r)
			if r.OK {
				ok++
			} else {
				assert.Equal(t, PunchOperatorBusy, r.Reason)
			}
		}
		assert.Equal(t, 1, ok)

		active, err := h.store.Executions().FindActiveByOperator(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, active)
	})

	t.Run("tracker without a shared lock still sees the active stage", func(t *testing.T) {
		h := newHarness()
		h.store.SeedJobs(scheduledJob("J1", "TI1", 8, 12))
		repos := Repositories{
			Jobs:       h.store.Jobs(),
			Machines:   h.store.Machines(),
			Parts:      h.store.Parts(),
			Stages:     h.store.Stages(),
			Executions: h.store.Executions(),
		}
		unlocked := NewStageExecutionTracker(repos, nil, noopLocker{}, nil, logging.NewNop()).
			WithClock(func() time.Time { return hour(8) })

		require.NoError(t, h.store.Executions().Save(ctx, domain.StartExecution("E0", "J1", "sls", "bob", 4, hour(8))))

		res, err := unlocked.PunchIn(ctx, punchIn("J1", "sls", "alice"))
		require.NoError(t, err)
		assert.Equal(t, PunchStageActive, res.Reason)
	})
}

func TestStageExecutionTracker_RepositoryFailure(t *testing.T) {
	failure := fmt.Errorf("%w: socket closed", domain.ErrRepositoryUnavailable)
	repos := Repositories{
		Jobs: &fakeJobRepo{
			findByIDFn: func(context.Context, string) (*domain.Job, error) { return nil, failure },
		},
	}
	tracker := NewStageExecutionTracker(repos, nil, noopLocker{}, nil, logging.NewNop())

	res, err := tracker.PunchIn(context.Background(), punchIn("J1", "sls", "alice"))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsInfrastructure(err))
}

func TestStageExecutionTracker_LockTimeout(t *testing.T) {
	h := newHarness()
	h.store.SeedJobs(scheduledJob("J1", "TI1", 8, 12))

	unlock, err := h.tracker.locker.Acquire(context.Background(), jobLockKey("J1"))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := h.tracker.PunchIn(ctx, punchIn("J1", "sls", "alice"))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)
	assert.True(t, IsInfrastructure(err))
}
