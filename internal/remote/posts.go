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

// PostCollection provides per-document access to the remote "posts"
// collection.
type PostCollection struct {
	coll *mongo.Collection
}

// Get returns the post document with the given ID, or (nil, nil) if absent.
func (c *PostCollection) Get(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("fetching post %q: %w", id, err)
	}
	return &p, nil
}

// Set fully overwrites the document keyed by the post's ID, creating it if
// absent. No partial update, no concurrency token.
func (c *PostCollection) Set(ctx context.Context, p *model.Post) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("writing post %q: %w", p.ID, err)
	}
	return nil
}

// Delete removes the post document. Deleting a missing document is not an
// error.
func (c *PostCollection) Delete(ctx context.Context, id string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("deleting post %q: %w", id, err)
	}
	return nil
}

// ListAll fetches the entire collection into memory. No pagination; the
// post count is small enough that a full pull per refresh is acceptable.
func (c *PostCollection) ListAll(ctx context.Context) ([]*model.Post, error) {
	cur, err := c.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	var posts []*model.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decoding posts: %w", err)
	}
	return posts, nil
}
