package application

import (
	"context"
	"sync"
	"time"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/lock"
	"github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/memory"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time {
	return day.Add(time.Duration(h) * time.Hour)
}

func tiParams() domain.SLSParameters {
	return domain.SLSParameters{
		LaserPowerWatts:         200,
		ScanSpeedMmPerSec:       1200,
		LayerThicknessMicrons:   30,
		HatchSpacingMicrons:     120,
		BuildTemperatureCelsius: 180,
		ArgonPurityPercent:      99.99,
		OxygenContentPpm:        50,
		SlsMaterial:             string(domain.MaterialTi64Grade5),
	}
}

func scheduledJob(id, machine string, startHour, endHour int) *domain.Job {
	return &domain.Job{
		JobID:          id,
		MachineID:      machine,
		PartID:         "P1",
		ScheduledStart: hour(startHour),
		ScheduledEnd:   hour(endHour),
		Status:         domain.JobStatusScheduled,
		Quantity:       1,
		SLSParameters:  tiParams(),
	}
}

func scheduleCommand(id, machine string, startHour, endHour int) ScheduleJobCommand {
	return ScheduleJobCommand{
		JobID:          id,
		MachineID:      machine,
		PartID:         "P1",
		ScheduledStart: hour(startHour),
		ScheduledEnd:   hour(endHour),
		Parameters:     tiParams(),
	}
}

// testClock is a settable time source shared by the tracker.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type harness struct {
	store   *memory.Store
	service *SchedulingService
	tracker *StageExecutionTracker
	clock   *testClock
}

// newHarness wires both services over a seeded memory store: machines TI1
// (Ti-6Al-4V loaded) and IN1 (Inconel 718 loaded), stages sls and post, and
// part P1 routed sls -> post.
func newHarness() *harness {
	store := memory.NewStore()
	store.SeedMachines(
		&domain.Machine{
			MachineID:            "TI1",
			Name:                 "TruPrint 3000 #1",
			CurrentMaterial:      string(domain.MaterialTi64Grade5),
			SupportedMaterials:   []domain.Material{domain.MaterialTi64Grade5, domain.MaterialTi64ELIGrade23, domain.MaterialInconel718},
			IsActive:             true,
			Priority:             1,
			OperatingCostPerHour: 100,
		},
		&domain.Machine{
			MachineID:       "IN1",
			Name:            "TruPrint 3000 #2",
			CurrentMaterial: string(domain.MaterialInconel718),
			IsActive:        true,
			Priority:        2,
		},
	)
	store.SeedStages(
		&domain.ProductionStage{StageID: "sls", Name: "SLS Printing", DisplayOrder: 1, IsActive: true},
		&domain.ProductionStage{StageID: "post", Name: "Post-processing", DisplayOrder: 2, IsActive: true},
	)
	store.SeedRequirements("P1",
		domain.PartStageRequirement{StageID: "sls", ExecutionOrder: 1, EstimatedHours: 4},
		domain.PartStageRequirement{StageID: "post", ExecutionOrder: 2, EstimatedHours: 2},
	)

	repos := Repositories{
		Jobs:       store.Jobs(),
		Machines:   store.Machines(),
		Parts:      store.Parts(),
		Stages:     store.Stages(),
		Executions: store.Executions(),
	}
	locker := lock.NewKeyedLocker()
	engine := NewEngine(DefaultEngineConfig(), store.Machines())
	clock := &testClock{now: hour(8)}

	return &harness{
		store:   store,
		service: NewSchedulingService(repos, engine, locker, nil, logging.NewNop()),
		tracker: NewStageExecutionTracker(repos, engine.Changeover, locker, nil, logging.NewNop()).WithClock(clock.Now),
		clock:   clock,
	}
}

type fakeJobRepo struct {
	findByIDFn      func(context.Context, string) (*domain.Job, error)
	findByMachineFn func(context.Context, string, domain.TimeRange) ([]*domain.Job, error)
	saveFn          func(context.Context, *domain.Job) error
}

func (f *fakeJobRepo) FindByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, jobID)
	}
	return nil, nil
}

func (f *fakeJobRepo) FindByMachine(ctx context.Context, machineID string, window domain.TimeRange) ([]*domain.Job, error) {
	if f.findByMachineFn != nil {
		return f.findByMachineFn(ctx, machineID, window)
	}
	return nil, nil
}

func (f *fakeJobRepo) Save(ctx context.Context, job *domain.Job) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, job)
	}
	return nil
}

func (f *fakeJobRepo) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, actualStart, actualEnd *time.Time) error {
	return nil
}

func (f *fakeJobRepo) Delete(ctx context.Context, jobID string) error {
	return nil
}

type fakeMachineRepo struct {
	findAllFn  func(context.Context) ([]*domain.Machine, error)
	findByIDFn func(context.Context, string) (*domain.Machine, error)
}

func (f *fakeMachineRepo) FindAll(ctx context.Context) ([]*domain.Machine, error) {
	if f.findAllFn != nil {
		return f.findAllFn(ctx)
	}
	return nil, nil
}

func (f *fakeMachineRepo) FindByID(ctx context.Context, machineID string) (*domain.Machine, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, machineID)
	}
	return nil, nil
}

func (f *fakeMachineRepo) ApplyMaterialTransition(ctx context.Context, t domain.MaterialTransition) error {
	return nil
}

// noopLocker grants every lock immediately.
type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
