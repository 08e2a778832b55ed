// Package mongodb provides a scoped MongoDB connection: connect, run one unit of work, disconnect.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Config holds the connection settings for a Connector.
type Config struct {
	URI                    string
	Database               string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

// Scope runs a unit of work against a live database handle.
type Scope interface {
	WithDatabase(ctx context.Context, work func(ctx context.Context, db *mongo.Database) error) error
}

// Connector opens a fresh client for every unit of work and always releases it afterwards.
type Connector struct {
	cfg    Config
	logger *slog.Logger
}

var _ Scope = (*Connector)(nil)

// NewConnector creates a Connector with the provided configuration.
func NewConnector(cfg Config, logger *slog.Logger) *Connector {
	return &Connector{
		cfg:    cfg,
		logger: logger.With("component", "mongodb"),
	}
}

// clientOptions builds the driver options with bounded connect and server selection timeouts.
func (c *Connector) clientOptions() *options.ClientOptions {
	return options.Client().
		ApplyURI(c.cfg.URI).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetServerSelectionTimeout(c.cfg.ServerSelectionTimeout)
}

// WithDatabase connects, pings the primary and hands work the configured database.
// The client is disconnected on every exit path. Errors returned by work are passed through unchanged.
func (c *Connector) WithDatabase(ctx context.Context, work func(ctx context.Context, db *mongo.Database) error) error {
	client, err := mongo.Connect(c.clientOptions())
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer func() {
		// Disconnect even when ctx is already cancelled.
		disconnectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ConnectTimeout)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			c.logger.WarnContext(ctx, "Failed to disconnect from mongodb", "error", err)
			return
		}
		c.logger.DebugContext(ctx, "Disconnected from mongodb")
	}()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	c.logger.DebugContext(ctx, "Connected to mongodb", "database", c.cfg.Database)

	return work(ctx, client.Database(c.cfg.Database))
}

// Run is WithDatabase for work that produces a value.
func Run[T any](ctx context.Context, scope Scope, work func(ctx context.Context, db *mongo.Database) (T, error)) (T, error) {
	var result T
	err := scope.WithDatabase(ctx, func(ctx context.Context, db *mongo.Database) error {
		var workErr error
		result, workErr = work(ctx, db)
		return workErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
