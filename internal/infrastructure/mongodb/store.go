// Package mongodb persists the scheduling aggregates in MongoDB. Punches are
// written in one transaction together with their outbox events, and unique
// partial indexes on InProgress executions back the one-active-stage rules.
package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/cloudevents"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/kafka"
	pkgmongo "github.com/HenryGill4/OpCentrix-sub006/pkg/mongodb"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/outbox"
	outboxMongo "github.com/HenryGill4/OpCentrix-sub006/pkg/outbox/mongodb"
)

// Collection names
const (
	JobsCollection         = "jobs"
	MachinesCollection     = "machines"
	StagesCollection       = "production_stages"
	RequirementsCollection = "part_stage_requirements"
	ExecutionsCollection   = "stage_executions"
)

const (
	jobIDIndex          = "uniq_job_id"
	activeJobStageIndex = "uniq_active_job_stage"
	activeOperatorIndex = "uniq_active_operator"
)

// ExpectedErrors are the business outcomes the repositories return from
// inside a transaction. Pass them to pkgmongo.WithExpectedErrors.
var ExpectedErrors = []error{
	domain.ErrStageAlreadyActive,
	domain.ErrOperatorBusy,
	domain.ErrExecutionNotActive,
	domain.ErrJobNotFound,
	domain.ErrJobExists,
	domain.ErrMachineNotFound,
}

// Store owns the collections and the outbox.
type Store struct {
	client       *pkgmongo.Client
	outbox       *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewStore creates a Store on client's database.
func NewStore(client *pkgmongo.Client, eventFactory *cloudevents.EventFactory) *Store {
	if eventFactory == nil {
		eventFactory = cloudevents.NewEventFactory(cloudevents.SourceScheduling)
	}
	return &Store{
		client:       client,
		outbox:       outboxMongo.NewOutboxRepository(client.Database()),
		eventFactory: eventFactory,
	}
}

// Outbox returns the outbox repository the publisher drains.
func (s *Store) Outbox() *outboxMongo.OutboxRepository { return s.outbox }

// Jobs returns the job repository.
func (s *Store) Jobs() *JobRepository {
	return &JobRepository{store: s, collection: s.client.Collection(JobsCollection)}
}

// Machines returns the machine repository.
func (s *Store) Machines() *MachineRepository {
	return &MachineRepository{store: s, collection: s.client.Collection(MachinesCollection)}
}

// Parts returns the part routing repository.
func (s *Store) Parts() *PartRepository {
	return &PartRepository{store: s, collection: s.client.Collection(RequirementsCollection)}
}

// Stages returns the production stage repository.
func (s *Store) Stages() *StageRepository {
	return &StageRepository{store: s, collection: s.client.Collection(StagesCollection)}
}

// Executions returns the stage execution repository.
func (s *Store) Executions() *ExecutionRepository {
	return &ExecutionRepository{store: s, collection: s.client.Collection(ExecutionsCollection)}
}

// EnsureIndexes creates every index the repositories rely on, including the
// two unique partial indexes over InProgress executions.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	activeOnly := pkgmongo.PartialIndexOn("status", domain.ExecutionStatusInProgress)

	indexes := map[string][]mongo.IndexModel{
		JobsCollection: {
			{Keys: bson.D{{Key: "jobId", Value: 1}}, Options: options.Index().SetUnique(true).SetName(jobIDIndex)},
			{Keys: bson.D{{Key: "machineId", Value: 1}, {Key: "scheduledStart", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		MachinesCollection: {
			{Keys: bson.D{{Key: "machineId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		StagesCollection: {
			{Keys: bson.D{{Key: "stageId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		RequirementsCollection: {
			{Keys: bson.D{{Key: "partId", Value: 1}, {Key: "stageId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "partId", Value: 1}, {Key: "executionOrder", Value: 1}}},
		},
		ExecutionsCollection: {
			{Keys: bson.D{{Key: "executionId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "jobId", Value: 1}, {Key: "startDate", Value: 1}}},
			{
				Keys: bson.D{{Key: "jobId", Value: 1}, {Key: "stageId", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetName(activeJobStageIndex).
					SetPartialFilterExpression(activeOnly),
			},
			{
				Keys: bson.D{{Key: "operatorName", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetName(activeOperatorIndex).
					SetPartialFilterExpression(activeOnly),
			},
		},
	}

	for name, models := range indexes {
		err := s.client.Do(ctx, name, "createIndexes", func(ctx context.Context) error {
			_, err := s.client.Collection(name).Indexes().CreateMany(ctx, models)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}

	return s.outbox.EnsureIndexes(ctx)
}

// unavailable wraps a driver failure so callers can tell it from a domain
// outcome.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrRepositoryUnavailable, op, err)
}

// translate maps duplicate-key violations of the job and active-execution
// indexes to their domain errors and passes domain errors through. Breaker
// rejections stay matchable as resilience.ErrCircuitOpen.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range ExpectedErrors {
		if stderrors.Is(err, target) {
			return err
		}
	}
	if pkgmongo.IsDuplicateKey(err) {
		switch msg := err.Error(); {
		case strings.Contains(msg, jobIDIndex):
			return domain.ErrJobExists
		case strings.Contains(msg, activeJobStageIndex):
			return domain.ErrStageAlreadyActive
		case strings.Contains(msg, activeOperatorIndex):
			return domain.ErrOperatorBusy
		}
	}
	if pkgmongo.IsCircuitOpen(err) {
		return fmt.Errorf("%w: %s: %w", domain.ErrRepositoryUnavailable, op, err)
	}
	return unavailable(op, err)
}

// saveEvents converts domain events to CloudEvents and writes them to the
// outbox. Pass a session context to join a transaction.
func (s *Store) saveEvents(ctx context.Context, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		topic, aggregateType, subject := route(event)
		cloudEvent := s.eventFactory.CreateEvent(ctx, event.EventType(), subject, event)
		cloudEvent.Time = event.OccurredAt()

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(event.AggregateID(), aggregateType, topic, cloudEvent)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}
	return s.outbox.SaveAll(ctx, outboxEvents)
}

// route picks the topic, aggregate type and CloudEvents subject of an event.
func route(event domain.DomainEvent) (topic, aggregateType, subject string) {
	switch e := event.(type) {
	case *domain.StagePunchedInEvent:
		return kafka.Topics.StageEvents, "StageExecution", "execution/" + e.ExecutionID
	case *domain.StagePunchedOutEvent:
		return kafka.Topics.StageEvents, "StageExecution", "execution/" + e.ExecutionID
	case *domain.MaterialChangedEvent:
		return kafka.Topics.MachineEvents, "Machine", "machine/" + e.MachineID
	default:
		return kafka.Topics.JobEvents, "Job", "job/" + event.AggregateID()
	}
}

func now() time.Time { return pkgmongo.Now() }
