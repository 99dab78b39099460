package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/bookboard-app/bookboard/internal/model"
	"github.com/bookboard-app/bookboard/internal/store"
)

func newProfileFixture(t *testing.T, docs ...*model.Profile) (*ProfileService, *mockRemoteProfiles, *store.DB) {
	t.Helper()
	db := openTestDB(t)
	remote := newMockRemoteProfiles(docs...)
	svc := NewProfileService(db.Profiles, remote, db.Outbox, testLogger())
	return svc, remote, db
}

func profile(id, email, name string) *model.Profile {
	return &model.Profile{ID: id, Email: email, Name: name}
}

func TestProfileCreate_RoundTrip(t *testing.T) {
	svc, remote, _ := newProfileFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, profile("u1", "ada@example.com", "Ada"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.CreatedAt == 0 {
		t.Error("Create did not stamp CreatedAt")
	}

	got, err := svc.GetLocal(ctx, "u1")
	if err != nil {
		t.Fatalf("GetLocal: %v", err)
	}
	if got == nil || got.Email != "ada@example.com" || got.Name != "Ada" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if !remote.has("u1") {
		t.Error("successful create should be mirrored remotely")
	}
}

func TestProfileCreate_RejectsInvalid(t *testing.T) {
	svc, _, _ := newProfileFixture(t)

	if _, err := svc.Create(context.Background(), profile("u1", "", "Ada")); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestProfileRefresh_Found(t *testing.T) {
	svc, _, _ := newProfileFixture(t, &model.Profile{
		ID: "u1", Email: "ada@example.com", Name: "Ada", CreatedAt: 100,
	})
	ctx := context.Background()

	p, err := svc.Refresh(ctx, "u1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if p == nil || p.Name != "Ada" {
		t.Fatalf("Refresh returned %+v", p)
	}

	cached, err := svc.GetLocal(ctx, "u1")
	if err != nil {
		t.Fatalf("GetLocal: %v", err)
	}
	if cached == nil || cached.Name != "Ada" {
		t.Error("Refresh did not cache the profile locally")
	}
}

func TestProfileRefresh_Absent(t *testing.T) {
	svc, _, _ := newProfileFixture(t)

	p, err := svc.Refresh(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if p != nil {
		t.Errorf("expected (nil, nil) for an absent profile, got %+v", p)
	}
}

func TestProfileRefresh_RemoteFailureKeepsCache(t *testing.T) {
	svc, remote, db := newProfileFixture(t)
	ctx := context.Background()

	stale := profile("u1", "ada@example.com", "Ada Before")
	stale.CreatedAt = 100
	if err := db.Profiles.Upsert(ctx, stale); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	remote.failAll = true
	if _, err := svc.Refresh(ctx, "u1"); err == nil {
		t.Fatal("expected Refresh to fail")
	}

	cached, err := svc.GetLocal(ctx, "u1")
	if err != nil {
		t.Fatalf("GetLocal: %v", err)
	}
	if cached == nil || cached.Name != "Ada Before" {
		t.Error("failed Refresh must not disturb the cached copy")
	}
}

func TestProfileLoadAll_ReplacesLocal(t *testing.T) {
	svc, _, db := newProfileFixture(t,
		&model.Profile{ID: "u1", Email: "ada@example.com", Name: "Ada", CreatedAt: 100},
		&model.Profile{ID: "u2", Email: "bob@example.com", Name: "Bob", CreatedAt: 200},
	)
	ctx := context.Background()

	orphan := profile("old", "old@example.com", "Old")
	orphan.CreatedAt = 1
	if err := db.Profiles.Upsert(ctx, orphan); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	profiles, err := svc.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}
	gone, err := svc.GetLocal(ctx, "old")
	if err != nil {
		t.Fatalf("GetLocal: %v", err)
	}
	if gone != nil {
		t.Error("local-only profile survived a full resync")
	}
}

func TestProfileUpdate_MirrorFailureQueuesOutbox(t *testing.T) {
	svc, remote, db := newProfileFixture(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, profile("u1", "ada@example.com", "Ada")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	remote.failWrites = true
	updated := profile("u1", "ada@example.com", "Ada Lovelace")
	updated.CreatedAt = 100
	if err := svc.Update(ctx, updated); err != nil {
		t.Fatalf("Update must succeed on the local write alone, got %v", err)
	}

	cached, err := svc.GetLocal(ctx, "u1")
	if err != nil {
		t.Fatalf("GetLocal: %v", err)
	}
	if cached.Name != "Ada Lovelace" {
		t.Errorf("local name = %q, want updated value", cached.Name)
	}

	pending, err := db.Outbox.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Entity != store.EntityProfile || pending[0].Op != store.OpSet {
		t.Fatalf("unexpected outbox state: %+v", pending)
	}
}

func TestProfileDelete_Mirrors(t *testing.T) {
	svc, remote, _ := newProfileFixture(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, profile("u1", "ada@example.com", "Ada")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	cached, err := svc.GetLocal(ctx, "u1")
	if err != nil {
		t.Fatalf("GetLocal: %v", err)
	}
	if cached != nil {
		t.Error("profile still cached after delete")
	}
	if remote.has("u1") {
		t.Error("profile still in remote collection after delete")
	}
}

// A successful mirror must discard queued sets for the same profile so the
// drain loop cannot revert the remote document to an older version.
func TestProfileUpdate_SupersedesQueuedMirror(t *testing.T) {
	svc, remote, db := newProfileFixture(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, profile("u1", "ada@example.com", "Ada")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	remote.failWrites = true
	stale := profile("u1", "ada@example.com", "Ada Old")
	stale.CreatedAt = 100
	if err := svc.Update(ctx, stale); err != nil {
		t.Fatalf("Update: %v", err)
	}

	remote.failWrites = false
	current := profile("u1", "ada@example.com", "Ada Lovelace")
	current.CreatedAt = 100
	if err := svc.Update(ctx, current); err != nil {
		t.Fatalf("Update: %v", err)
	}

	pending, err := db.Outbox.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("superseded entry still queued: %+v", pending)
	}
	remoteDoc, err := remote.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("remote.Get: %v", err)
	}
	if remoteDoc.Name != "Ada Lovelace" {
		t.Errorf("remote name = %q, want the latest update", remoteDoc.Name)
	}
}

func TestProfileGetLocalByEmail(t *testing.T) {
	svc, _, _ := newProfileFixture(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, profile("u1", "ada@example.com", "Ada")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.GetLocalByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetLocalByEmail: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Errorf("GetLocalByEmail = %+v, want u1", got)
	}

	missing, err := svc.GetLocalByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetLocalByEmail: %v", err)
	}
	if missing != nil {
		t.Errorf("expected (nil, nil) for an unknown email, got %+v", missing)
	}
}
