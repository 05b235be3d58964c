package mongodb

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	pkgmongo "github.com/HenryGill4/OpCentrix-sub006/pkg/mongodb"
)

var (
	_ domain.JobRepository       = (*JobRepository)(nil)
	_ domain.MachineRepository   = (*MachineRepository)(nil)
	_ domain.PartRepository      = (*PartRepository)(nil)
	_ domain.StageRepository     = (*StageRepository)(nil)
	_ domain.ExecutionRepository = (*ExecutionRepository)(nil)
)

// findOne decodes a single document into out, reporting false when none
// matched.
func findOne(ctx context.Context, c *mongo.Collection, filter bson.M, out interface{}) (bool, error) {
	err := c.FindOne(ctx, filter).Decode(out)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

// JobRepository implements domain.JobRepository
type JobRepository struct {
	store      *Store
	collection *mongo.Collection
}

// FindByID finds a job by ID
func (r *JobRepository) FindByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	var found bool
	err := r.store.client.Do(ctx, JobsCollection, "findOne", func(ctx context.Context) (err error) {
		found, err = findOne(ctx, r.collection, bson.M{"jobId": jobID}, &job)
		return err
	})
	if err != nil {
		return nil, unavailable("find job", err)
	}
	if !found {
		return nil, nil
	}
	return &job, nil
}

// FindByMachine returns the machine's jobs overlapping window
func (r *JobRepository) FindByMachine(ctx context.Context, machineID string, window domain.TimeRange) ([]*domain.Job, error) {
	filter := bson.M{
		"machineId":      machineID,
		"scheduledStart": bson.M{"$lt": window.End},
		"scheduledEnd":   bson.M{"$gt": window.Start},
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduledStart", Value: 1}, {Key: "jobId", Value: 1}})

	jobs := []*domain.Job{}
	err := r.store.client.Do(ctx, JobsCollection, "find", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &jobs)
	})
	if err != nil {
		return nil, unavailable("find machine jobs", err)
	}
	return jobs, nil
}

// Save inserts a job and writes its pending events to the outbox in the same
// transaction. The unique jobId index turns a taken ID into ErrJobExists.
func (r *JobRepository) Save(ctx context.Context, job *domain.Job) error {
	job.UpdatedAt = now()
	events := job.PullDomainEvents()

	err := r.store.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.collection.InsertOne(sessCtx, job); err != nil {
			return err
		}
		return r.store.saveEvents(sessCtx, events)
	})
	if err != nil {
		// leave the events on the aggregate for a retry
		job.DomainEvents = append(events, job.DomainEvents...)
		return translate("save job", err)
	}
	return nil
}

func (r *JobRepository) replace(ctx context.Context, job *domain.Job) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"jobId": job.JobID}, job)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// UpdateStatus sets a job's status and, when given, its actual times
func (r *JobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, actualStart, actualEnd *time.Time) error {
	set := bson.M{"status": status}
	if actualStart != nil {
		set["actualStart"] = *actualStart
	}
	if actualEnd != nil {
		set["actualEnd"] = *actualEnd
	}

	var matched int64
	err := r.store.client.Do(ctx, JobsCollection, "updateOne", func(ctx context.Context) error {
		res, err := r.collection.UpdateOne(ctx, bson.M{"jobId": jobID}, pkgmongo.BuildUpdateWithTimestamp(set))
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		return nil
	})
	if err != nil {
		return unavailable("update job status", err)
	}
	if matched == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// Delete removes a job
func (r *JobRepository) Delete(ctx context.Context, jobID string) error {
	var deleted int64
	err := r.store.client.Do(ctx, JobsCollection, "deleteOne", func(ctx context.Context) error {
		res, err := r.collection.DeleteOne(ctx, bson.M{"jobId": jobID})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	if err != nil {
		return unavailable("delete job", err)
	}
	if deleted == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// MachineRepository implements domain.MachineRepository
type MachineRepository struct {
	store      *Store
	collection *mongo.Collection
}

// FindAll returns machines ordered by priority, then ID
func (r *MachineRepository) FindAll(ctx context.Context) ([]*domain.Machine, error) {
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "machineId", Value: 1}})

	machines := []*domain.Machine{}
	err := r.store.client.Do(ctx, MachinesCollection, "find", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, bson.M{}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &machines)
	})
	if err != nil {
		return nil, unavailable("find machines", err)
	}
	return machines, nil
}

// FindByID finds a machine by ID
func (r *MachineRepository) FindByID(ctx context.Context, machineID string) (*domain.Machine, error) {
	var machine domain.Machine
	var found bool
	err := r.store.client.Do(ctx, MachinesCollection, "findOne", func(ctx context.Context) (err error) {
		found, err = findOne(ctx, r.collection, bson.M{"machineId": machineID}, &machine)
		return err
	})
	if err != nil {
		return nil, unavailable("find machine", err)
	}
	if !found {
		return nil, nil
	}
	return &machine, nil
}

// Save upserts a machine
func (r *MachineRepository) Save(ctx context.Context, machine *domain.Machine) error {
	machine.UpdatedAt = now()
	err := r.store.client.Do(ctx, MachinesCollection, "replaceOne", func(ctx context.Context) error {
		_, err := r.collection.ReplaceOne(ctx, bson.M{"machineId": machine.MachineID}, machine, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return unavailable("save machine", err)
	}
	return nil
}

// ApplyMaterialTransition loads the transition's target material
func (r *MachineRepository) ApplyMaterialTransition(ctx context.Context, t domain.MaterialTransition) error {
	err := r.store.client.Do(ctx, MachinesCollection, "updateOne", func(ctx context.Context) error {
		return r.apply(ctx, t)
	})
	return translate("apply material transition", err)
}

func (r *MachineRepository) apply(ctx context.Context, t domain.MaterialTransition) error {
	update := pkgmongo.BuildUpdateWithTimestamp(bson.M{"currentMaterial": t.To})
	res, err := r.collection.UpdateOne(ctx, bson.M{"machineId": t.MachineID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrMachineNotFound
	}
	return nil
}

// PartRepository implements domain.PartRepository
type PartRepository struct {
	store      *Store
	collection *mongo.Collection
}

// FindStageRequirements returns the part's routing ordered by execution order
func (r *PartRepository) FindStageRequirements(ctx context.Context, partID string) (domain.StageRequirements, error) {
	opts := options.Find().SetSort(bson.D{{Key: "executionOrder", Value: 1}, {Key: "stageId", Value: 1}})

	var reqs domain.StageRequirements
	err := r.store.client.Do(ctx, RequirementsCollection, "find", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, bson.M{"partId": partID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &reqs)
	})
	if err != nil {
		return nil, unavailable("find stage requirements", err)
	}
	return reqs, nil
}

// Save upserts one requirement
func (r *PartRepository) Save(ctx context.Context, req domain.PartStageRequirement) error {
	err := r.store.client.Do(ctx, RequirementsCollection, "replaceOne", func(ctx context.Context) error {
		filter := bson.M{"partId": req.PartID, "stageId": req.StageID}
		_, err := r.collection.ReplaceOne(ctx, filter, req, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return unavailable("save stage requirement", err)
	}
	return nil
}

// StageRepository implements domain.StageRepository
type StageRepository struct {
	store      *Store
	collection *mongo.Collection
}

// FindByID finds a stage by ID
func (r *StageRepository) FindByID(ctx context.Context, stageID string) (*domain.ProductionStage, error) {
	var stage domain.ProductionStage
	var found bool
	err := r.store.client.Do(ctx, StagesCollection, "findOne", func(ctx context.Context) (err error) {
		found, err = findOne(ctx, r.collection, bson.M{"stageId": stageID}, &stage)
		return err
	})
	if err != nil {
		return nil, unavailable("find stage", err)
	}
	if !found {
		return nil, nil
	}
	return &stage, nil
}

// FindAll returns stages in display order
func (r *StageRepository) FindAll(ctx context.Context) ([]*domain.ProductionStage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "displayOrder", Value: 1}, {Key: "stageId", Value: 1}})

	stages := []*domain.ProductionStage{}
	err := r.store.client.Do(ctx, StagesCollection, "find", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, bson.M{}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &stages)
	})
	if err != nil {
		return nil, unavailable("find stages", err)
	}
	return stages, nil
}

// Save upserts a stage
func (r *StageRepository) Save(ctx context.Context, stage *domain.ProductionStage) error {
	err := r.store.client.Do(ctx, StagesCollection, "replaceOne", func(ctx context.Context) error {
		_, err := r.collection.ReplaceOne(ctx, bson.M{"stageId": stage.StageID}, stage, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return unavailable("save stage", err)
	}
	return nil
}

// ExecutionRepository implements domain.ExecutionRepository
type ExecutionRepository struct {
	store      *Store
	collection *mongo.Collection
}

func (r *ExecutionRepository) findOne(ctx context.Context, op string, filter bson.M) (*domain.ProductionStageExecution, error) {
	var e domain.ProductionStageExecution
	var found bool
	err := r.store.client.Do(ctx, ExecutionsCollection, "findOne", func(ctx context.Context) (err error) {
		found, err = findOne(ctx, r.collection, filter, &e)
		return err
	})
	if err != nil {
		return nil, unavailable(op, err)
	}
	if !found {
		return nil, nil
	}
	return &e, nil
}

// FindActive returns the InProgress execution of a job's stage
func (r *ExecutionRepository) FindActive(ctx context.Context, jobID, stageID string) (*domain.ProductionStageExecution, error) {
	return r.findOne(ctx, "find active execution", bson.M{
		"jobId":   jobID,
		"stageId": stageID,
		"status":  domain.ExecutionStatusInProgress,
	})
}

// FindActiveByOperator returns the operator's InProgress execution
func (r *ExecutionRepository) FindActiveByOperator(ctx context.Context, operator string) (*domain.ProductionStageExecution, error) {
	return r.findOne(ctx, "find operator execution", bson.M{
		"operatorName": operator,
		"status":       domain.ExecutionStatusInProgress,
	})
}

// FindByJob returns a job's executions ordered by start
func (r *ExecutionRepository) FindByJob(ctx context.Context, jobID string) ([]*domain.ProductionStageExecution, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}, {Key: "executionId", Value: 1}})

	executions := []*domain.ProductionStageExecution{}
	err := r.store.client.Do(ctx, ExecutionsCollection, "find", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, bson.M{"jobId": jobID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &executions)
	})
	if err != nil {
		return nil, unavailable("find job executions", err)
	}
	return executions, nil
}

// Save upserts an execution. The unique partial indexes reject a second
// active execution for the same stage or operator.
func (r *ExecutionRepository) Save(ctx context.Context, e *domain.ProductionStageExecution) error {
	err := r.store.client.Do(ctx, ExecutionsCollection, "replaceOne", func(ctx context.Context) error {
		_, err := r.collection.ReplaceOne(ctx, bson.M{"executionId": e.ExecutionID}, e, options.Replace().SetUpsert(true))
		return err
	})
	return translate("save execution", err)
}

// RecordPunch writes the execution, job, material transition and outbox
// events in one transaction.
func (r *ExecutionRepository) RecordPunch(ctx context.Context, rec domain.PunchRecord) error {
	jobs := r.store.Jobs()
	machines := r.store.Machines()

	err := r.store.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := r.writeExecution(sessCtx, rec.Execution); err != nil {
			return err
		}
		if rec.Job != nil {
			rec.Job.UpdatedAt = now()
			if err := jobs.replace(sessCtx, rec.Job); err != nil {
				return err
			}
		}
		if rec.Transition != nil {
			if err := machines.apply(sessCtx, *rec.Transition); err != nil {
				return err
			}
		}
		return r.store.saveEvents(sessCtx, rec.Events)
	})
	return translate("record punch", err)
}

// writeExecution inserts a new active execution, or replaces the stored one
// only while it is still InProgress.
func (r *ExecutionRepository) writeExecution(ctx context.Context, e *domain.ProductionStageExecution) error {
	if e.IsActive() {
		_, err := r.collection.InsertOne(ctx, e)
		return err
	}

	filter := bson.M{"executionId": e.ExecutionID, "status": domain.ExecutionStatusInProgress}
	res, err := r.collection.ReplaceOne(ctx, filter, e)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrExecutionNotActive
	}
	return nil
}
