package whatsapp

import (
	"context"
	"sync"
)

// Handle is the live client handle of one workshop. At most one handle per
// workshop exists at any instant; the registry owns creation and removal.
type Handle struct {
	WorkshopID int64

	mux    sync.RWMutex
	client Client
	lc     *lifecycle

	readyOnce sync.Once
	ready     chan struct{}
	failOnce  sync.Once
	failed    chan struct{}
	initErr   error
}

func newHandle(workshopID int64) *Handle {
	return &Handle{
		WorkshopID: workshopID,
		ready:      make(chan struct{}),
		failed:     make(chan struct{}),
	}
}

func (h *Handle) attach(client Client, lc *lifecycle) {
	h.mux.Lock()
	h.client = client
	h.lc = lc
	h.mux.Unlock()
}

// Client returns the attached automation client, nil while construction is
// still in flight.
func (h *Handle) Client() Client {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return h.client
}

// State is the last lifecycle phase this handle observed.
func (h *Handle) State() SessionState {
	h.mux.RLock()
	lc := h.lc
	h.mux.RUnlock()
	if lc == nil {
		return StateDisconnected
	}
	return lc.State()
}

// markReady resolves all waiters on the creation race.
func (h *Handle) markReady() {
	h.readyOnce.Do(func() { close(h.ready) })
}

// fail resolves waiters with err. It is a no-op once the handle is ready:
// a late failure after readiness is the disconnect path, not a failed
// creation.
func (h *Handle) fail(err error) {
	select {
	case <-h.ready:
		return
	default:
	}
	h.failOnce.Do(func() {
		h.mux.Lock()
		h.initErr = err
		h.mux.Unlock()
		close(h.failed)
	})
}

// Err returns the creation failure, valid once failed is closed.
func (h *Handle) Err() error {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return h.initErr
}

// initializing reports whether the creation race is still undecided. A
// liveness probe during construction must not discard the handle.
func (h *Handle) initializing() bool {
	select {
	case <-h.ready:
		return false
	default:
	}
	select {
	case <-h.failed:
		return false
	default:
	}
	return true
}

// connected is the reuse probe: the client answers and reports itself
// connected and authenticated.
func (h *Handle) connected() bool {
	c := h.Client()
	if c == nil {
		return false
	}
	lv := c.Liveness()
	return lv.Connected && lv.LoggedIn
}

// SendMessage delivers text through this handle's client.
func (h *Handle) SendMessage(ctx context.Context, destination, text string) error {
	if !h.connected() {
		return &NotReadyError{WorkshopID: h.WorkshopID}
	}
	if err := h.Client().SendMessage(ctx, destination, text); err != nil {
		return &SendError{WorkshopID: h.WorkshopID, Destination: destination, Err: err}
	}
	return nil
}

// release stops the event loop and destroys the client. Safe to call more
// than once and on a handle that never finished construction.
func (h *Handle) release() {
	h.mux.RLock()
	client, lc := h.client, h.lc
	h.mux.RUnlock()
	if lc != nil {
		lc.stopLoop()
	}
	if client != nil {
		client.Destroy()
	}
}
