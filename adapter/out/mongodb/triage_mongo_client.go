// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connection tuning for the decision log. The collection sees one
// small insert per processed message and occasional reads from the
// report endpoints, so the pool stays small and idle connections are
// released quickly.
const (
	connectTimeout  = 10 * time.Second
	maxPoolSize     = 16
	maxConnIdleTime = 2 * time.Minute
)

// NewClient connects to MongoDB and verifies the primary is reachable.
func NewClient(url string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(url).
		SetAppName("triage-server").
		SetMaxPoolSize(maxPoolSize).
		SetMaxConnIdleTime(maxConnIdleTime).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}
