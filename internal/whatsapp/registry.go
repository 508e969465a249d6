package whatsapp

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInitTimeout bounds the wait for a client to become ready; the
// readiness signal is not always delivered promptly and callers must not
// block indefinitely.
const DefaultInitTimeout = 10 * time.Second

// Registry is the process-wide map from workshop id to live client handle.
// It enforces at most one live handle per workshop and get-or-create with a
// liveness probe on reuse.
type Registry struct {
	mux     sync.Mutex
	handles map[int64]*Handle

	factory     ClientFactory
	archive     *ArchiveBridge
	status      StatusSink
	initTimeout time.Duration
}

type RegistryOption func(*Registry)

func WithInitTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.initTimeout = d
		}
	}
}

func NewRegistry(factory ClientFactory, archive *ArchiveBridge, status StatusSink, opts ...RegistryOption) *Registry {
	r := &Registry{
		handles:     make(map[int64]*Handle),
		factory:     factory,
		archive:     archive,
		status:      status,
		initTimeout: DefaultInitTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the workshop's live handle, building one if needed.
// A connected handle is returned unchanged; a handle still under
// construction is waited on rather than discarded; a stale handle is
// released and replaced. Errors are always *ConnectError.
func (r *Registry) GetOrCreate(ctx context.Context, workshopID int64) (*Handle, error) {
	r.mux.Lock()
	for {
		h, ok := r.handles[workshopID]
		if !ok {
			break
		}
		if h.initializing() {
			r.mux.Unlock()
			return r.awaitReady(ctx, h)
		}
		if h.connected() {
			r.mux.Unlock()
			return h, nil
		}
		// the stale handle must be fully released before a replacement is
		// built; release outside the lock, then re-check the map since a
		// concurrent caller may have inserted a handle meanwhile
		delete(r.handles, workshopID)
		r.mux.Unlock()
		h.release()
		zap.L().Info("whatsapp: discarded stale session handle",
			zap.Int64("workshop_id", workshopID))
		r.mux.Lock()
	}
	// insert before starting initialization so concurrent callers observe
	// the in-flight handle instead of racing a duplicate creation
	h := newHandle(workshopID)
	r.handles[workshopID] = h
	r.mux.Unlock()

	go r.initialize(h)
	return r.awaitReady(ctx, h)
}

// initialize restores the archived session (best effort), constructs the
// client and starts it. Restore must finish before construction: the client
// reads pairing material from the session directory.
func (r *Registry) initialize(h *Handle) {
	ctx := context.Background()

	restored, err := r.archive.Restore(ctx, h.WorkshopID)
	switch {
	case err != nil:
		// a restore failure just means fresh pairing is required
		zap.L().Warn("whatsapp: session restore failed",
			zap.Int64("workshop_id", h.WorkshopID), zap.Error(err))
	case restored:
		zap.L().Info("whatsapp: session restored from archive",
			zap.Int64("workshop_id", h.WorkshopID))
	}

	client, err := r.factory.New(ctx, h.WorkshopID, r.archive.SessionDir(h.WorkshopID))
	if err != nil {
		h.fail(&ConnectError{WorkshopID: h.WorkshopID, Reason: "client construction failed", Err: err})
		r.drop(h)
		return
	}

	lc := newLifecycle(h, client, r.status, r.archive, r.drop)
	h.attach(client, lc)
	go lc.run()

	if err := client.Start(ctx); err != nil {
		h.fail(&ConnectError{WorkshopID: h.WorkshopID, Reason: "client start failed", Err: err})
		r.drop(h)
	}
}

// awaitReady races readiness against auth failure and the bounded timeout.
// Ready and auth failure preempt the timeout; the timeout only succeeds if
// the client already reports itself initialized. The timeout does not
// cancel the underlying initialization: a late ready event still lands and
// updates the status projection.
func (r *Registry) awaitReady(ctx context.Context, h *Handle) (*Handle, error) {
	timer := time.NewTimer(r.initTimeout)
	defer timer.Stop()

	select {
	case <-h.ready:
		return h, nil
	case <-h.failed:
		// ready may have raced the failure signal
		select {
		case <-h.ready:
			return h, nil
		default:
		}
		return nil, h.Err()
	case <-ctx.Done():
		return nil, &ConnectError{WorkshopID: h.WorkshopID, Reason: "caller cancelled", Err: ctx.Err()}
	case <-timer.C:
		if h.connected() {
			h.markReady()
			return h, nil
		}
		return nil, &ConnectError{WorkshopID: h.WorkshopID, Reason: "initialization timed out"}
	}
}

// drop removes the handle from the registry, if it is still the current
// one, and releases its resources.
func (r *Registry) drop(h *Handle) {
	r.mux.Lock()
	if cur, ok := r.handles[h.WorkshopID]; ok && cur == h {
		delete(r.handles, h.WorkshopID)
	}
	r.mux.Unlock()
	h.release()
}

// Send resolves the workshop's handle and delivers one message. This is the
// entry point shared by the reminder dispatcher and the bill-send API.
func (r *Registry) Send(ctx context.Context, workshopID int64, destination, text string) error {
	h, err := r.GetOrCreate(ctx, workshopID)
	if err != nil {
		return err
	}
	return h.SendMessage(ctx, destination, text)
}

// Clear is the explicit tenant-initiated teardown: the live handle, the
// status document, the stored archive and the local session directory are
// all removed. Only the status deletion is load-bearing; the rest is best
// effort.
func (r *Registry) Clear(ctx context.Context, workshopID int64) error {
	r.mux.Lock()
	h := r.handles[workshopID]
	delete(r.handles, workshopID)
	r.mux.Unlock()
	if h != nil {
		h.release()
	}

	if err := r.archive.Delete(ctx, workshopID); err != nil {
		zap.L().Warn("whatsapp: archive delete failed",
			zap.Int64("workshop_id", workshopID), zap.Error(err))
	}
	if err := os.RemoveAll(r.archive.SessionDir(workshopID)); err != nil {
		zap.L().Warn("whatsapp: session dir removal failed",
			zap.Int64("workshop_id", workshopID), zap.Error(err))
	}
	if err := r.status.Delete(ctx, workshopID); err != nil {
		return err
	}
	zap.L().Info("whatsapp: session cleared", zap.Int64("workshop_id", workshopID))
	return nil
}

// Size reports the number of live handles, connected or not.
func (r *Registry) Size() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.handles)
}

// Shutdown releases every handle. Used on process exit.
func (r *Registry) Shutdown() {
	r.mux.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.handles = make(map[int64]*Handle)
	r.mux.Unlock()
	for _, h := range handles {
		h.release()
	}
}
