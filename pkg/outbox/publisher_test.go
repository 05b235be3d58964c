package outbox

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryGill4/OpCentrix-sub006/pkg/cloudevents"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
)

type fakeRepo struct {
	events    []*OutboxEvent
	published []string
	retried   map[string]string
}

func (r *fakeRepo) SaveAll(context.Context, []*OutboxEvent) error { return nil }

func (r *fakeRepo) FindUnpublished(context.Context, int) ([]*OutboxEvent, error) {
	return r.events, nil
}

func (r *fakeRepo) MarkPublished(_ context.Context, eventID string) error {
	r.published = append(r.published, eventID)
	return nil
}

func (r *fakeRepo) IncrementRetry(_ context.Context, eventID string, errorMsg string) error {
	if r.retried == nil {
		r.retried = map[string]string{}
	}
	r.retried[eventID] = errorMsg
	return nil
}

type fakeProducer struct {
	failTopic string
	sent      []string
}

func (p *fakeProducer) PublishEvent(_ context.Context, topic string, event *cloudevents.Event) error {
	if topic == p.failTopic {
		return fmt.Errorf("broker down")
	}
	p.sent = append(p.sent, event.Type)
	return nil
}

func newEvent(t *testing.T, id, topic, eventType string) *OutboxEvent {
	t.Helper()
	ce := cloudevents.NewEventFactory(cloudevents.SourceScheduling).
		CreateEvent(context.Background(), eventType, "job/"+id, map[string]string{"jobId": id})
	e, err := NewOutboxEventFromCloudEvent(id, "Job", topic, ce)
	require.NoError(t, err)
	e.ID = id
	return e
}

func TestPublisher_ProcessOnce(t *testing.T) {
	fresh := newEvent(t, "E1", "jobs", "opcentrix.job.scheduled")
	failing := newEvent(t, "E2", "machines", "opcentrix.machine.material-changed")
	exhausted := newEvent(t, "E3", "jobs", "opcentrix.job.completed")
	exhausted.RetryCount = exhausted.MaxRetries
	published := newEvent(t, "E4", "jobs", "opcentrix.job.started")
	at := time.Now().UTC()
	published.PublishedAt = &at

	repo := &fakeRepo{events: []*OutboxEvent{fresh, failing, exhausted, published}}
	producer := &fakeProducer{failTopic: "machines"}
	p := NewPublisher(repo, producer, logging.NewNop(), nil, nil)

	p.ProcessOnce(context.Background())

	assert.Equal(t, []string{"E1"}, repo.published)
	assert.Equal(t, []string{"opcentrix.job.scheduled"}, producer.sent)
	assert.Equal(t, map[string]string{"E2": "broker down"}, repo.retried)
	assert.Equal(t, map[string]int{"published": 1, "failed": 1}, p.Stats())
}

func TestOutboxEvent_ShouldRetry(t *testing.T) {
	e := newEvent(t, "E1", "jobs", "opcentrix.job.scheduled")
	assert.True(t, e.ShouldRetry())

	e.RetryCount = e.MaxRetries
	assert.False(t, e.ShouldRetry())

	e.RetryCount = 0
	now := time.Now()
	e.PublishedAt = &now
	assert.False(t, e.ShouldRetry())
}
