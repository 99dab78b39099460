// Package sync mediates between the local SQLite mirror and the remote
// document collections. It implements the write-through pattern for posts and
// user profiles: reads always come from the local store, mutations hit the
// local store first and are mirrored to the remote collection best-effort,
// and a refresh destructively replaces the local contents with a fresh
// remote snapshot.
//
// The package contains two kinds of components:
//
//   - [PostService] and [ProfileService] expose the caller-facing
//     operations (load, create, update, delete, search).
//   - [Engine] runs the drain loop that replays failed remote mirrors
//     from the persisted outbox.
package sync

import (
	"context"

	"github.com/bookboard-app/bookboard/internal/model"
	"github.com/bookboard-app/bookboard/internal/store"
)

// LocalPosts provides access to the local posts mirror.
// Implemented by [store.PostStore].
type LocalPosts interface {
	GetAll(ctx context.Context) ([]*model.Post, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*model.Post, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	Upsert(ctx context.Context, p *model.Post) error
	Update(ctx context.Context, p *model.Post) error
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, posts []*model.Post) error
}

// RemotePosts provides access to the remote posts collection.
// Implemented by [remote.PostCollection].
type RemotePosts interface {
	Get(ctx context.Context, id string) (*model.Post, error)
	Set(ctx context.Context, p *model.Post) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*model.Post, error)
}

// LocalProfiles provides access to the local profiles mirror.
// Implemented by [store.ProfileStore].
type LocalProfiles interface {
	GetAll(ctx context.Context) ([]*model.Profile, error)
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	Upsert(ctx context.Context, p *model.Profile) error
	Update(ctx context.Context, p *model.Profile) error
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, profiles []*model.Profile) error
}

// RemoteProfiles provides access to the remote users collection.
// Implemented by [remote.ProfileCollection].
type RemoteProfiles interface {
	Get(ctx context.Context, id string) (*model.Profile, error)
	Set(ctx context.Context, p *model.Profile) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*model.Profile, error)
}

// OutboxQueue is the persisted queue of unmirrored remote operations.
// Implemented by [store.Outbox].
type OutboxQueue interface {
	Enqueue(ctx context.Context, op *store.PendingOp) error
	Pending(ctx context.Context, limit int) ([]*store.PendingOp, error)
	Delete(ctx context.Context, id int64) error
	Bump(ctx context.Context, id int64) error
	PurgeEntity(ctx context.Context, entity store.Entity, entityID string) error
	Depth(ctx context.Context) (int, error)
}
