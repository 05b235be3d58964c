package mongodb

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/kafka"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/resilience"
)

func duplicateKey(index string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: opcentrix.stage_executions index: " + index + " dup key",
	}}}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"active stage index", duplicateKey(activeJobStageIndex), domain.ErrStageAlreadyActive},
		{"active operator index", duplicateKey(activeOperatorIndex), domain.ErrOperatorBusy},
		{"job id index", duplicateKey(jobIDIndex), domain.ErrJobExists},
		{"other unique index", duplicateKey("executionId_1"), domain.ErrRepositoryUnavailable},
		{"domain error passes through", domain.ErrExecutionNotActive, domain.ErrExecutionNotActive},
		{"driver failure", errors.New("server selection timeout"), domain.ErrRepositoryUnavailable},
		{"deadline", context.DeadlineExceeded, domain.ErrRepositoryUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate("record punch", tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestTranslate_CircuitOpen(t *testing.T) {
	err := translate("find jobs", fmt.Errorf("mongodb: %w", resilience.ErrCircuitOpen))

	assert.ErrorIs(t, err, domain.ErrRepositoryUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Contains(t, err.Error(), "find jobs")
}

func TestRoute(t *testing.T) {
	topic, aggregate, subject := route(&domain.StagePunchedInEvent{ExecutionID: "E1", JobID: "J1"})
	assert.Equal(t, kafka.Topics.StageEvents, topic)
	assert.Equal(t, "StageExecution", aggregate)
	assert.Equal(t, "execution/E1", subject)

	topic, aggregate, subject = route(&domain.MaterialChangedEvent{MachineID: "TI1"})
	assert.Equal(t, kafka.Topics.MachineEvents, topic)
	assert.Equal(t, "Machine", aggregate)
	assert.Equal(t, "machine/TI1", subject)

	topic, aggregate, subject = route(&domain.JobCompletedEvent{JobID: "J1"})
	assert.Equal(t, kafka.Topics.JobEvents, topic)
	assert.Equal(t, "Job", aggregate)
	assert.Equal(t, "job/J1", subject)
}
