package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel/attribute"

	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/metrics"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/resilience"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/tracing"
)

const tracerName = "opcentrix/mongodb"

// Config holds MongoDB connection configuration
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
	Username       string
	Password       string
	AuthDB         string
	ReplicaSet     string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		URI:            "mongodb://localhost:27017",
		Database:       "opcentrix",
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    50,
		MinPoolSize:    5,
	}
}

// Client wraps the driver client. Every call made through Do or
// WithTransaction is traced, timed and guarded by a circuit breaker.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	config   *Config
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *logging.Logger
	expected []error
}

// Option customises a Client
type Option func(*Client)

// WithMetrics records per-operation metrics and the breaker state
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger logs every operation at debug level, failures at error
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient connects and pings the primary
func NewClient(ctx context.Context, config *Config, opts ...Option) (*Client, error) {
	clientOpts := options.Client().
		ApplyURI(config.URI).
		SetConnectTimeout(config.ConnectTimeout).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize)

	if config.Username != "" && config.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username:   config.Username,
			Password:   config.Password,
			AuthSource: config.AuthDB,
		})
	}
	if config.ReplicaSet != "" {
		clientOpts.SetReplicaSet(config.ReplicaSet)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return Wrap(client, config.Database, opts...), nil
}

// WithExpectedErrors marks errors that are business outcomes rather than
// database failures. They neither trip the breaker nor count as failed
// operations.
func WithExpectedErrors(errs ...error) Option {
	return func(c *Client) { c.expected = append(c.expected, errs...) }
}

// Wrap builds a Client around an already connected driver client.
func Wrap(client *mongo.Client, database string, opts ...Option) *Client {
	c := &Client{
		client:   client,
		database: client.Database(database),
		config:   &Config{Database: database},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cbConfig := resilience.DefaultCircuitBreakerConfig("mongodb")
	cbConfig.IsSuccessful = c.isHealthyOutcome
	cbConfig.OnStateChange = func(name string, _, to gobreaker.State) {
		if c.metrics != nil {
			c.metrics.SetCircuitBreakerState(name, resilience.StateValue(to))
		}
	}
	c.breaker = resilience.NewCircuitBreaker(cbConfig, c.logger.Logger)

	return c
}

// isHealthyOutcome keeps expected results like "no document" or a unique
// index violation from tripping the breaker.
func (c *Client) isHealthyOutcome(err error) bool {
	if err == nil ||
		errors.Is(err, mongo.ErrNoDocuments) ||
		mongo.IsDuplicateKeyError(err) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	for _, target := range c.expected {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Database returns the database handle
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Collection returns a collection handle
func (c *Client) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// Client returns the underlying MongoDB client
func (c *Client) Client() *mongo.Client {
	return c.client
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// HealthCheck pings the primary
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Do runs fn as one named operation on a collection.
func (c *Client) Do(ctx context.Context, collection, operation string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "mongodb."+operation,
		attribute.String("db.system", "mongodb"),
		attribute.String("db.name", c.database.Name()),
		attribute.String("db.collection", collection),
		attribute.String("db.operation", operation),
	)

	start := time.Now()
	err := c.breaker.Run(ctx, func() error { return fn(ctx) })
	duration := time.Since(start)

	ok := c.isHealthyOutcome(err)
	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(collection, operation, ok, duration)
	}
	c.logger.DatabaseQuery(ctx, collection, operation, duration, ok)

	if ok {
		tracing.EndSpan(span, nil)
	} else {
		tracing.EndSpan(span, err)
	}
	return err
}

// WithTransaction runs fn inside a multi-document transaction
func (c *Client) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	return c.Do(ctx, "*", "transaction", func(ctx context.Context) error {
		session, err := c.client.StartSession()
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			return nil, fn(sessCtx)
		})
		return err
	})
}

// IsCircuitOpen reports whether err came from an open breaker
func IsCircuitOpen(err error) bool {
	return errors.Is(err, resilience.ErrCircuitOpen)
}
