// Package remote adapts the entity records to documents in the MongoDB
// collections that hold cross-device state. One collection per entity kind,
// keyed by the record ID.
//
// Every method performs network I/O, fails independently per call, and never
// retries internally; retry policy belongs to the sync layer's outbox.
package remote

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collPosts       = "posts"
	collUsers       = "users"
	collCredentials = "credentials"

	connectTimeout = 15 * time.Second
)

// Client wraps the MongoDB connection and exposes one typed adapter per
// collection. Construct once with [Connect] and thread through constructors.
type Client struct {
	mc *mongo.Client

	// Posts is the "posts" document collection.
	Posts *PostCollection
	// Profiles is the "users" document collection.
	Profiles *ProfileCollection
	// Credentials holds login credentials, keyed by email.
	Credentials *CredentialStore
}

// Connect dials MongoDB at uri, pings it, and returns a ready Client bound to
// the named database.
func Connect(ctx context.Context, uri, dbName string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB at %q: %w", uri, err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging MongoDB at %q: %w", uri, err)
	}

	db := mc.Database(dbName)
	return &Client{
		mc:          mc,
		Posts:       &PostCollection{coll: db.Collection(collPosts)},
		Profiles:    &ProfileCollection{coll: db.Collection(collUsers)},
		Credentials: &CredentialStore{coll: db.Collection(collCredentials)},
	}, nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.mc.Disconnect(ctx)
}
