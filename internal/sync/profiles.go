package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/bookboard-app/bookboard/internal/model"
	"github.com/bookboard-app/bookboard/internal/store"
)

// ProfileService coordinates the user-profile mirror. Same dual-write shape
// as [PostService], with one difference: profile IDs come from the identity
// provider rather than being generated here, so they are the join key between
// authentication and storage.
type ProfileService struct {
	local  LocalProfiles
	remote RemoteProfiles
	outbox OutboxQueue
	log    *slog.Logger

	mu gosync.Mutex
}

// NewProfileService creates a ProfileService wired to the given stores.
func NewProfileService(local LocalProfiles, remote RemoteProfiles, outbox OutboxQueue, logger *slog.Logger) *ProfileService {
	return &ProfileService{local: local, remote: remote, outbox: outbox, log: logger}
}

// LoadAll destructively replaces the local profile mirror with the remote
// collection's current contents. Local state is untouched when the remote
// fetch fails.
func (s *ProfileService) LoadAll(ctx context.Context) ([]*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.remote.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching remote profiles: %w", err)
	}
	if err := s.local.ReplaceAll(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("replacing local profiles: %w", err)
	}
	s.log.Info("profiles resynced from remote", "count", len(snapshot))
	return s.local.GetAll(ctx)
}

// Refresh pulls a single profile document from the remote collection and
// upserts it locally. Returns the refreshed profile, or (nil, nil) when the
// document does not exist remotely. A remote failure propagates; the local
// copy stays as it was.
func (s *ProfileService) Refresh(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.remote.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching remote profile: %w", err)
	}
	if p == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.local.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("caching profile: %w", err)
	}
	return p, nil
}

// Create stamps the creation timestamp, writes the profile locally, and
// mirrors it remotely with outbox fallback. The ID must already be set to the
// identity provider's user ID.
func (s *ProfileService) Create(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.CreatedAt = model.NowMillis()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	s.mirrorSet(ctx, p)
	return p, nil
}

// Update replaces an existing profile in full, locally then remotely.
func (s *ProfileService) Update(ctx context.Context, p *model.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.Update(ctx, p); err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	s.mirrorSet(ctx, p)
	return nil
}

// Delete removes the profile locally and mirrors the removal remotely. Posts
// owned by the profile are not touched; orphaned posts are allowed.
func (s *ProfileService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	if err := s.remote.Delete(ctx, id); err != nil {
		s.log.Warn("profile delete mirror failed, queued for retry", "id", id, "error", err)
		s.enqueue(ctx, &store.PendingOp{
			Entity:   store.EntityProfile,
			Op:       store.OpDelete,
			EntityID: id,
		})
		return nil
	}
	s.purge(ctx, id)
	return nil
}

// GetLocal returns the locally cached profile, or (nil, nil) if absent. No
// remote call is made.
func (s *ProfileService) GetLocal(ctx context.Context, id string) (*model.Profile, error) {
	return s.local.GetByID(ctx, id)
}

// GetLocalByEmail returns the locally cached profile with the given email, or
// (nil, nil) if absent. The mirror is a full remote snapshot, so a hit here
// means the address is already registered.
func (s *ProfileService) GetLocalByEmail(ctx context.Context, email string) (*model.Profile, error) {
	return s.local.GetByEmail(ctx, email)
}

func (s *ProfileService) mirrorSet(ctx context.Context, p *model.Profile) {
	err := s.remote.Set(ctx, p)
	if err == nil {
		s.purge(ctx, p.ID)
		return
	}
	s.log.Warn("profile mirror failed, queued for retry", "id", p.ID, "error", err)

	payload, err := json.Marshal(p)
	if err != nil {
		s.log.Error("encoding profile for outbox", "id", p.ID, "error", err)
		return
	}
	s.enqueue(ctx, &store.PendingOp{
		Entity:   store.EntityProfile,
		Op:       store.OpSet,
		EntityID: p.ID,
		Payload:  payload,
	})
}

func (s *ProfileService) enqueue(ctx context.Context, op *store.PendingOp) {
	if err := s.outbox.Enqueue(ctx, op); err != nil {
		s.log.Error("enqueueing mirror retry", "entity_id", op.EntityID, "error", err)
	}
}

// purge drops queued retries for the record: the remote now holds newer
// state, and a stale replay would overwrite it.
func (s *ProfileService) purge(ctx context.Context, id string) {
	if err := s.outbox.PurgeEntity(ctx, store.EntityProfile, id); err != nil {
		s.log.Error("purging superseded mirror retries", "entity_id", id, "error", err)
	}
}
