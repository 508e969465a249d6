package whatsapp

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	statusWriteTimeout = 10 * time.Second
	archiveSaveTimeout = 60 * time.Second
)

// lifecycle is the state machine of one workshop's client. A single
// goroutine per workshop consumes the client's events, so transitions never
// race each other; every transition overwrites the full status projection.
//
//	created -> awaiting_pairing -> connected
//	connected -> disconnected
//	any -> error on authentication failure
//
// disconnected and error are terminal for this handle; recovery goes
// through a fresh registry creation.
type lifecycle struct {
	handle  *Handle
	client  Client
	status  StatusSink
	archive *ArchiveBridge
	onGone  func(h *Handle)

	mux      sync.Mutex
	state    SessionState
	identity string

	stopOnce sync.Once
	done     chan struct{}
}

func newLifecycle(h *Handle, client Client, status StatusSink, archive *ArchiveBridge, onGone func(*Handle)) *lifecycle {
	return &lifecycle{
		handle:  h,
		client:  client,
		status:  status,
		archive: archive,
		onGone:  onGone,
		state:   StateDisconnected,
		done:    make(chan struct{}),
	}
}

func (l *lifecycle) State() SessionState {
	l.mux.Lock()
	defer l.mux.Unlock()
	return l.state
}

func (l *lifecycle) stopLoop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// run consumes events until a terminal transition or teardown.
func (l *lifecycle) run() {
	for {
		select {
		case <-l.done:
			return
		case ev := <-l.client.Events():
			if terminal := l.handleEvent(ev); terminal {
				return
			}
		}
	}
}

func (l *lifecycle) handleEvent(ev Event) bool {
	zap.L().Debug("whatsapp: lifecycle event",
		zap.Int64("workshop_id", l.handle.WorkshopID),
		zap.String("event", ev.Kind.String()))

	switch ev.Kind {
	case EventPairingCode:
		image, err := renderPairingImage(ev.PairingCode)
		if err != nil {
			zap.L().Error("whatsapp: render pairing image failed",
				zap.Int64("workshop_id", l.handle.WorkshopID), zap.Error(err))
		}
		l.transition(StateAwaitingPairing, image, "")
		return false

	case EventReady:
		l.transition(StateConnected, "", ev.Identity)
		l.handle.markReady()
		// durability only; the ready transition never waits on it
		go l.saveArchive()
		return false

	case EventDisconnected:
		l.transition(StateDisconnected, "", "")
		l.handle.fail(&ConnectError{WorkshopID: l.handle.WorkshopID, Reason: "disconnected before ready"})
		l.onGone(l.handle)
		return true

	case EventAuthFailure:
		l.transition(StateError, "", "")
		l.handle.fail(&ConnectError{WorkshopID: l.handle.WorkshopID, Reason: "authentication failure", Err: ev.Err})
		l.onGone(l.handle)
		return true
	}
	return false
}

// transition records the new phase and writes the whole status document.
// The paired identity persists across later transitions until the session
// is explicitly cleared; the pairing image exists only while
// awaiting_pairing.
func (l *lifecycle) transition(state SessionState, pairingImage, identity string) {
	l.mux.Lock()
	l.state = state
	if identity != "" {
		l.identity = identity
	}
	identity = l.identity
	l.mux.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	err := l.status.Upsert(ctx, Status{
		WorkshopID:     l.handle.WorkshopID,
		State:          state,
		PairingImage:   pairingImage,
		PairedIdentity: identity,
		UpdatedAt:      time.Now(),
	})
	if err != nil {
		zap.L().Error("whatsapp: status projection write failed",
			zap.Int64("workshop_id", l.handle.WorkshopID),
			zap.String("state", state), zap.Error(err))
	}
}

func (l *lifecycle) saveArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), archiveSaveTimeout)
	defer cancel()
	if err := l.archive.Save(ctx, l.handle.WorkshopID); err != nil {
		zap.L().Warn("whatsapp: session archive save failed",
			zap.Int64("workshop_id", l.handle.WorkshopID), zap.Error(err))
		return
	}
	zap.L().Info("whatsapp: session archived",
		zap.Int64("workshop_id", l.handle.WorkshopID))
}
