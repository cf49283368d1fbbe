package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/shvydak/homelab-dashboard/internal/infrastructure/config"
)

const (
	pingTimeout       = 5 * time.Second
	disconnectTimeout = 5 * time.Second
)

// ErrNoURI is returned by Connect when no connection URI is configured.
var ErrNoURI = errors.New("mongodb: uri is empty")

// Client wraps a mongo.Client bound to one database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect creates a client, pings the primary and selects cfg.Database.
func Connect(ctx context.Context, cfg config.MongoDBConfig) (*Client, error) {
	if cfg.URI == "" {
		return nil, ErrNoURI
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	c := &Client{client: client, db: client.Database(cfg.Database)}
	if err := c.HealthCheck(ctx); err != nil {
		c.Close(context.WithoutCancel(ctx)) //nolint:errcheck // best effort on the error path
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return c, nil
}

// Database returns the configured database handle.
func (c *Client) Database() *mongo.Database { return c.db }

// HealthCheck pings the primary.
func (c *Client) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.client.Ping(pingCtx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	closeCtx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	defer cancel()
	return c.client.Disconnect(closeCtx)
}
