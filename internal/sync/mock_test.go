package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	gosync "sync"
	"testing"

	"github.com/bookboard-app/bookboard/internal/model"
	"github.com/bookboard-app/bookboard/internal/store"
)

var errRemoteDown = errors.New("remote unreachable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	d, err := store.Open(filepath.Join(t.TempDir(), "sync-test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// --- Mock remote posts collection --------------------------------------------

type mockRemotePosts struct {
	mu   gosync.Mutex
	docs map[string]*model.Post

	// failAll makes every call error; failWrites only Set/Delete.
	failAll    bool
	failWrites bool
}

func newMockRemotePosts(docs ...*model.Post) *mockRemotePosts {
	m := &mockRemotePosts{docs: make(map[string]*model.Post)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *mockRemotePosts) setFailWrites(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = v
}

func (m *mockRemotePosts) Get(_ context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errRemoteDown
	}
	p, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockRemotePosts) Set(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failWrites {
		return errRemoteDown
	}
	cp := *p
	m.docs[p.ID] = &cp
	return nil
}

func (m *mockRemotePosts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failWrites {
		return errRemoteDown
	}
	delete(m.docs, id)
	return nil
}

func (m *mockRemotePosts) ListAll(_ context.Context) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errRemoteDown
	}
	var out []*model.Post
	for _, p := range m.docs {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRemotePosts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *mockRemotePosts) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	return ok
}

// --- Mock remote profiles collection -----------------------------------------

type mockRemoteProfiles struct {
	mu   gosync.Mutex
	docs map[string]*model.Profile

	failAll    bool
	failWrites bool
}

func newMockRemoteProfiles(docs ...*model.Profile) *mockRemoteProfiles {
	m := &mockRemoteProfiles{docs: make(map[string]*model.Profile)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *mockRemoteProfiles) Get(_ context.Context, id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errRemoteDown
	}
	p, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockRemoteProfiles) Set(_ context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failWrites {
		return errRemoteDown
	}
	cp := *p
	m.docs[p.ID] = &cp
	return nil
}

func (m *mockRemoteProfiles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failWrites {
		return errRemoteDown
	}
	delete(m.docs, id)
	return nil
}

func (m *mockRemoteProfiles) ListAll(_ context.Context) ([]*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errRemoteDown
	}
	var out []*model.Profile
	for _, p := range m.docs {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRemoteProfiles) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	return ok
}
