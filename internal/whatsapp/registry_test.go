package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/blobstore"
)

type fakeClient struct {
	mu        sync.Mutex
	events    chan Event
	lv        Liveness
	script    []Event
	startErr  error
	sendErr   error
	sent      []string
	destroyed bool
}

func newFakeClient(script ...Event) *fakeClient {
	return &fakeClient{
		events: make(chan Event, 8),
		script: script,
	}
}

func (c *fakeClient) Start(ctx context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	go func() {
		for _, ev := range c.script {
			if ev.Kind == EventReady {
				c.setLiveness(Liveness{Connected: true, LoggedIn: true})
			}
			c.events <- ev
		}
	}()
	return nil
}

func (c *fakeClient) Events() <-chan Event { return c.events }

func (c *fakeClient) Liveness() Liveness {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lv
}

func (c *fakeClient) setLiveness(lv Liveness) {
	c.mu.Lock()
	c.lv = lv
	c.mu.Unlock()
}

func (c *fakeClient) SendMessage(ctx context.Context, destination, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, destination+"|"+text)
	return nil
}

func (c *fakeClient) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
}

func (c *fakeClient) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

type fakeFactory struct {
	mu      sync.Mutex
	build   func() *fakeClient
	err     error
	clients []*fakeClient
}

func (f *fakeFactory) New(ctx context.Context, workshopID int64, sessionDir string) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := f.build()
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *fakeFactory) client(i int) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[i]
}

type fakeStatus struct {
	mu      sync.Mutex
	upserts []Status
	deletes []int64
}

func (s *fakeStatus) Upsert(ctx context.Context, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, status)
	return nil
}

func (s *fakeStatus) Delete(ctx context.Context, workshopID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, workshopID)
	return nil
}

func (s *fakeStatus) all() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, len(s.upserts))
	copy(out, s.upserts)
	return out
}

func newTestRegistry(t *testing.T, factory ClientFactory, opts ...RegistryOption) (*Registry, *fakeStatus, *ArchiveBridge) {
	t.Helper()
	status := &fakeStatus{}
	archive := NewArchiveBridge(blobstore.NewMemoryStore(), t.TempDir())
	return NewRegistry(factory, archive, status, opts...), status, archive
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func readyFactory() *fakeFactory {
	return &fakeFactory{build: func() *fakeClient {
		return newFakeClient(
			Event{Kind: EventPairingCode, PairingCode: "pair-me"},
			Event{Kind: EventReady, Identity: "923001112233"},
		)
	}}
}

func TestGetOrCreateBecomesConnected(t *testing.T) {
	factory := readyFactory()
	r, status, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	h, err := r.GetOrCreate(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if h.State() != StateConnected {
		t.Fatalf("state = %q, want %q", h.State(), StateConnected)
	}
	if factory.count() != 1 {
		t.Fatalf("client constructions = %d, want 1", factory.count())
	}
	if r.Size() != 1 {
		t.Fatalf("registry size = %d, want 1", r.Size())
	}

	writes := status.all()
	if len(writes) < 2 {
		t.Fatalf("status writes = %d, want at least 2", len(writes))
	}
	pairing := writes[0]
	if pairing.State != StateAwaitingPairing {
		t.Fatalf("first write state = %q, want %q", pairing.State, StateAwaitingPairing)
	}
	if pairing.PairingImage == "" {
		t.Fatal("awaiting_pairing write has no pairing image")
	}
	connected := writes[1]
	if connected.State != StateConnected {
		t.Fatalf("second write state = %q, want %q", connected.State, StateConnected)
	}
	if connected.PairingImage != "" {
		t.Fatal("connected write kept the pairing image")
	}
	if connected.PairedIdentity != "923001112233" {
		t.Fatalf("connected write identity = %q", connected.PairedIdentity)
	}
}

func TestConcurrentGetOrCreateBuildsOneClient(t *testing.T) {
	factory := readyFactory()
	r, _, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	const callers = 16
	handles := make([]*Handle, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = r.GetOrCreate(context.Background(), 42)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Fatalf("caller %d got a different handle", i)
		}
	}
	if factory.count() != 1 {
		t.Fatalf("client constructions = %d, want 1", factory.count())
	}
}

func TestReuseReturnsSameHandleWithoutRebuild(t *testing.T) {
	factory := readyFactory()
	r, _, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	first, err := r.GetOrCreate(context.Background(), 3)
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	second, err := r.GetOrCreate(context.Background(), 3)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if first != second {
		t.Fatal("connected handle was not reused")
	}
	if factory.count() != 1 {
		t.Fatalf("client constructions = %d, want 1", factory.count())
	}
}

func TestStaleHandleReplaced(t *testing.T) {
	factory := readyFactory()
	r, _, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	first, err := r.GetOrCreate(context.Background(), 3)
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	// liveness probe now reports the session dead
	factory.client(0).setLiveness(Liveness{})

	second, err := r.GetOrCreate(context.Background(), 3)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if first == second {
		t.Fatal("stale handle was reused")
	}
	if factory.count() != 2 {
		t.Fatalf("client constructions = %d, want 2", factory.count())
	}
	waitFor(t, factory.client(0).isDestroyed, "stale client was not destroyed")
}

func TestAuthFailureRemovesHandle(t *testing.T) {
	authErr := errors.New("credentials rejected")
	factory := &fakeFactory{build: func() *fakeClient {
		return newFakeClient(Event{Kind: EventAuthFailure, Err: authErr})
	}}
	r, status, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	_, err := r.GetOrCreate(context.Background(), 9)
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *ConnectError", err)
	}
	if cerr.WorkshopID != 9 {
		t.Fatalf("ConnectError workshop = %d, want 9", cerr.WorkshopID)
	}
	if !errors.Is(err, authErr) {
		t.Fatal("ConnectError does not wrap the auth failure")
	}

	waitFor(t, func() bool { return r.Size() == 0 }, "failed handle was not removed")

	writes := status.all()
	if len(writes) == 0 || writes[len(writes)-1].State != StateError {
		t.Fatalf("last status write = %+v, want error state", writes)
	}
}

func TestDisconnectBeforeReadyRemovesHandle(t *testing.T) {
	factory := &fakeFactory{build: func() *fakeClient {
		return newFakeClient(Event{Kind: EventDisconnected})
	}}
	r, _, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	_, err := r.GetOrCreate(context.Background(), 11)
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *ConnectError", err)
	}
	waitFor(t, func() bool { return r.Size() == 0 }, "disconnected handle was not removed")
}

func TestInitTimeoutFallbackWhenClientAlive(t *testing.T) {
	// the client never reports ready but the liveness probe answers
	factory := &fakeFactory{build: func() *fakeClient {
		c := newFakeClient()
		c.setLiveness(Liveness{Connected: true, LoggedIn: true})
		return c
	}}
	r, _, _ := newTestRegistry(t, factory, WithInitTimeout(50*time.Millisecond))
	defer r.Shutdown()

	h, err := r.GetOrCreate(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if h == nil {
		t.Fatal("nil handle on timeout fallback")
	}
}

func TestInitTimeoutFailsWhenClientDead(t *testing.T) {
	factory := &fakeFactory{build: func() *fakeClient { return newFakeClient() }}
	r, _, _ := newTestRegistry(t, factory, WithInitTimeout(50*time.Millisecond))
	defer r.Shutdown()

	_, err := r.GetOrCreate(context.Background(), 5)
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *ConnectError", err)
	}
	if cerr.Reason != "initialization timed out" {
		t.Fatalf("reason = %q", cerr.Reason)
	}
}

func TestCallerCancellation(t *testing.T) {
	factory := &fakeFactory{build: func() *fakeClient { return newFakeClient() }}
	r, _, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.GetOrCreate(ctx, 5)
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *ConnectError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatal("ConnectError does not wrap context.Canceled")
	}
}

func TestConstructionFailureRemovesHandle(t *testing.T) {
	factory := &fakeFactory{err: errors.New("no store")}
	r, _, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	_, err := r.GetOrCreate(context.Background(), 5)
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *ConnectError", err)
	}
	waitFor(t, func() bool { return r.Size() == 0 }, "failed handle was not removed")
}

func TestSendNotReady(t *testing.T) {
	factory := readyFactory()
	r, _, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	h, err := r.GetOrCreate(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	factory.client(0).setLiveness(Liveness{})

	err = h.SendMessage(context.Background(), "923001234567@c.us", "hi")
	var nerr *NotReadyError
	if !errors.As(err, &nerr) {
		t.Fatalf("error = %v, want *NotReadyError", err)
	}
}

func TestRegistrySendDeliversThroughHandle(t *testing.T) {
	factory := readyFactory()
	r, _, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	if err := r.Send(context.Background(), 2, "923001234567@c.us", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	c := factory.client(0)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) != 1 || c.sent[0] != "923001234567@c.us|hello" {
		t.Fatalf("sent = %v", c.sent)
	}
}

func TestClearRemovesAllState(t *testing.T) {
	factory := readyFactory()
	r, status, archive := newTestRegistry(t, factory)
	defer r.Shutdown()

	if _, err := r.GetOrCreate(context.Background(), 8); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := r.Clear(context.Background(), 8); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if r.Size() != 0 {
		t.Fatalf("registry size = %d after clear", r.Size())
	}
	status.mu.Lock()
	deletes := append([]int64(nil), status.deletes...)
	status.mu.Unlock()
	if len(deletes) != 1 || deletes[0] != 8 {
		t.Fatalf("status deletes = %v, want [8]", deletes)
	}
	restored, err := archive.Restore(context.Background(), 8)
	if err != nil {
		t.Fatalf("Restore after clear: %v", err)
	}
	if restored {
		t.Fatal("archive survived clear")
	}
	waitFor(t, factory.client(0).isDestroyed, "client was not destroyed on clear")
}

type factoryFunc func(ctx context.Context, workshopID int64, sessionDir string) (Client, error)

func (f factoryFunc) New(ctx context.Context, workshopID int64, sessionDir string) (Client, error) {
	return f(ctx, workshopID, sessionDir)
}

func TestRestoreRunsBeforeClientConstruction(t *testing.T) {
	status := &fakeStatus{}
	archive := NewArchiveBridge(blobstore.NewMemoryStore(), t.TempDir())

	// archive a session, then wipe the live directory so only a restore
	// can bring the pairing material back
	dir := archive.SessionDir(4)
	writeSessionFiles(t, dir, map[string]string{"session.db": "pairing-material"})
	if err := archive.Save(context.Background(), 4); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	factory := factoryFunc(func(ctx context.Context, workshopID int64, sessionDir string) (Client, error) {
		data, err := os.ReadFile(filepath.Join(sessionDir, "session.db"))
		if err != nil {
			return nil, fmt.Errorf("session not restored before construction: %w", err)
		}
		if string(data) != "pairing-material" {
			return nil, fmt.Errorf("restored session content = %q", data)
		}
		return newFakeClient(Event{Kind: EventReady, Identity: "923001112233"}), nil
	})
	r := NewRegistry(factory, archive, status)
	defer r.Shutdown()

	if _, err := r.GetOrCreate(context.Background(), 4); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
}

func TestStaleClientDestroyedBeforeReplacement(t *testing.T) {
	var mu sync.Mutex
	var clients []*fakeClient
	var staleDestroyedAtRebuild bool
	factory := factoryFunc(func(ctx context.Context, workshopID int64, sessionDir string) (Client, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(clients) == 1 {
			staleDestroyedAtRebuild = clients[0].isDestroyed()
		}
		c := newFakeClient(Event{Kind: EventReady, Identity: "923001112233"})
		clients = append(clients, c)
		return c, nil
	})
	r, _, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	if _, err := r.GetOrCreate(context.Background(), 3); err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	mu.Lock()
	clients[0].setLiveness(Liveness{})
	mu.Unlock()

	if _, err := r.GetOrCreate(context.Background(), 3); err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(clients) != 2 {
		t.Fatalf("client constructions = %d, want 2", len(clients))
	}
	if !staleDestroyedAtRebuild {
		t.Fatal("stale client still alive when the replacement was built")
	}
}

func TestShutdownReleasesAllHandles(t *testing.T) {
	factory := readyFactory()
	r, _, _ := newTestRegistry(t, factory)

	for _, id := range []int64{1, 2, 3} {
		if _, err := r.GetOrCreate(context.Background(), id); err != nil {
			t.Fatalf("GetOrCreate(%d): %v", id, err)
		}
	}
	r.Shutdown()
	if r.Size() != 0 {
		t.Fatalf("registry size = %d after shutdown", r.Size())
	}
	for i := 0; i < factory.count(); i++ {
		waitFor(t, factory.client(i).isDestroyed, "client was not destroyed on shutdown")
	}
}
