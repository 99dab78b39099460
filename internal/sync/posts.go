package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/google/uuid"

	"github.com/bookboard-app/bookboard/internal/model"
	"github.com/bookboard-app/bookboard/internal/store"
)

// PostService coordinates the posts mirror. Reads are served from the local
// store; mutations are written locally first and mirrored to the remote
// collection best-effort. A mutex serializes LoadAll's destructive resync
// against concurrent mutations.
type PostService struct {
	local  LocalPosts
	remote RemotePosts
	outbox OutboxQueue
	log    *slog.Logger

	mu gosync.Mutex
}

// NewPostService creates a PostService wired to the given stores.
func NewPostService(local LocalPosts, remote RemotePosts, outbox OutboxQueue, logger *slog.Logger) *PostService {
	return &PostService{local: local, remote: remote, outbox: outbox, log: logger}
}

// LoadAll fetches the complete remote posts collection and destructively
// replaces the local mirror with it, then returns the fresh local contents.
// If the remote fetch fails, the local store is left untouched and the error
// propagates; the cache is never emptied on a failed pull.
func (s *PostService) LoadAll(ctx context.Context) ([]*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.remote.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching remote posts: %w", err)
	}
	if err := s.local.ReplaceAll(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("replacing local posts: %w", err)
	}
	s.log.Info("posts resynced from remote", "count", len(snapshot))
	return s.local.GetAll(ctx)
}

// Create validates the caller-supplied fields, assigns a fresh ID and
// creation timestamp, writes the post locally, and mirrors it remotely.
// A failed mirror is logged and queued for retry; the create still succeeds
// on the strength of the local write.
func (s *PostService) Create(ctx context.Context, p *model.Post) (*model.Post, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.ID = uuid.NewString()
	p.CreatedAt = model.NowMillis()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("saving post: %w", err)
	}
	s.mirrorSet(ctx, p)
	return p, nil
}

// Update replaces an existing post in full, locally then remotely.
// Updating an unknown ID is a local no-op but still mirrors, matching the
// upsert semantics of the remote store.
func (s *PostService) Update(ctx context.Context, p *model.Post) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.Update(ctx, p); err != nil {
		return fmt.Errorf("updating post: %w", err)
	}
	s.mirrorSet(ctx, p)
	return nil
}

// Delete removes the post locally and mirrors the removal remotely. A failed
// mirror leaves the document remotely until the outbox drains; a LoadAll in
// that window resurrects the post locally.
func (s *PostService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if err := s.remote.Delete(ctx, id); err != nil {
		s.log.Warn("post delete mirror failed, queued for retry", "id", id, "error", err)
		s.enqueue(ctx, &store.PendingOp{
			Entity:   store.EntityPost,
			Op:       store.OpDelete,
			EntityID: id,
		})
		return nil
	}
	s.purge(ctx, id)
	return nil
}

// GetAll returns every locally cached post, newest first.
func (s *PostService) GetAll(ctx context.Context) ([]*model.Post, error) {
	return s.local.GetAll(ctx)
}

// GetByOwner returns the locally cached posts owned by the given user.
func (s *PostService) GetByOwner(ctx context.Context, ownerID string) ([]*model.Post, error) {
	return s.local.GetByOwner(ctx, ownerID)
}

// GetByID returns the locally cached post, or (nil, nil) if absent.
func (s *PostService) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return s.local.GetByID(ctx, id)
}

// Search filters the local posts by a case-insensitive substring match over
// title and author. An empty query returns everything. Ordering is the local
// store's: creation time descending.
func (s *PostService) Search(ctx context.Context, query string) ([]*model.Post, error) {
	all, err := s.local.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}
	matched := make([]*model.Post, 0, len(all))
	for _, p := range all {
		if p.MatchesQuery(query) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// mirrorSet pushes a full-document overwrite to the remote collection and
// falls back to the outbox when it fails. A successful mirror supersedes any
// queued retries for the same record.
func (s *PostService) mirrorSet(ctx context.Context, p *model.Post) {
	err := s.remote.Set(ctx, p)
	if err == nil {
		s.purge(ctx, p.ID)
		return
	}
	s.log.Warn("post mirror failed, queued for retry", "id", p.ID, "error", err)

	payload, err := json.Marshal(p)
	if err != nil {
		s.log.Error("encoding post for outbox", "id", p.ID, "error", err)
		return
	}
	s.enqueue(ctx, &store.PendingOp{
		Entity:   store.EntityPost,
		Op:       store.OpSet,
		EntityID: p.ID,
		Payload:  payload,
	})
}

func (s *PostService) enqueue(ctx context.Context, op *store.PendingOp) {
	if err := s.outbox.Enqueue(ctx, op); err != nil {
		// Both the remote and the outbox failed; the divergence lasts until
		// the next successful LoadAll.
		s.log.Error("enqueueing mirror retry", "entity_id", op.EntityID, "error", err)
	}
}

// purge drops queued retries for the record: the remote now holds newer
// state, and a stale replay would overwrite it.
func (s *PostService) purge(ctx context.Context, id string) {
	if err := s.outbox.PurgeEntity(ctx, store.EntityPost, id); err != nil {
		s.log.Error("purging superseded mirror retries", "entity_id", id, "error", err)
	}
}
