package remote

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookboard-app/bookboard/internal/model"
)

// ProfileCollection provides per-document access to the remote "users"
// collection.
type ProfileCollection struct {
	coll *mongo.Collection
}

// Get returns the profile document with the given ID, or (nil, nil) if
// absent.
func (c *ProfileCollection) Get(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("fetching profile %q: %w", id, err)
	}
	return &p, nil
}

// Set fully overwrites the document keyed by the profile's ID, creating it
// if absent.
func (c *ProfileCollection) Set(ctx context.Context, p *model.Profile) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("writing profile %q: %w", p.ID, err)
	}
	return nil
}

// Delete removes the profile document.
func (c *ProfileCollection) Delete(ctx context.Context, id string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("deleting profile %q: %w", id, err)
	}
	return nil
}

// ListAll fetches the entire collection into memory.
func (c *ProfileCollection) ListAll(ctx context.Context) ([]*model.Profile, error) {
	cur, err := c.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	var profiles []*model.Profile
	if err := cur.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("decoding profiles: %w", err)
	}
	return profiles, nil
}
