package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
)

// Event types published by the scheduling service
const (
	StagePunchedIn         = "opcentrix.stage.punched-in"
	StagePunchedOut        = "opcentrix.stage.punched-out"
	JobStarted             = "opcentrix.job.started"
	JobCompleted           = "opcentrix.job.completed"
	JobScheduled           = "opcentrix.job.scheduled"
	MachineMaterialChanged = "opcentrix.machine.material-changed"
)

// SourceScheduling is the CloudEvents source of the scheduling service
const SourceScheduling = "/opcentrix/scheduling-service"

// Event is a CloudEvents v1.0 envelope
type Event struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// Extensions
	CorrelationID string `json:"opcorrelationid,omitempty"`
	Operator      string `json:"opoperator,omitempty"`
}

// EventFactory creates events stamped with a fixed source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new event. Correlation and operator extensions are
// lifted from ctx when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *Event {
	event := &Event{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	if ctx != nil {
		if v, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
			event.CorrelationID = v
		}
		if v, ok := ctx.Value(logging.OperatorKey).(string); ok {
			event.Operator = v
		}
	}

	return event
}
