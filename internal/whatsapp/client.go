package whatsapp

import (
	"context"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/domain"
)

// EventKind enumerates the lifecycle events an automation client emits.
type EventKind int

const (
	// EventPairingCode carries a fresh pairing code to be scanned.
	EventPairingCode EventKind = iota
	// EventReady signals the client is authenticated and connected.
	EventReady
	// EventDisconnected signals the transport connection dropped.
	EventDisconnected
	// EventAuthFailure signals the stored credentials were rejected.
	EventAuthFailure
)

func (k EventKind) String() string {
	switch k {
	case EventPairingCode:
		return "pairing_code"
	case EventReady:
		return "ready"
	case EventDisconnected:
		return "disconnected"
	case EventAuthFailure:
		return "auth_failure"
	default:
		return "unknown"
	}
}

// Event is one lifecycle event. PairingCode is set for EventPairingCode,
// Identity for EventReady, Err for EventAuthFailure.
type Event struct {
	Kind        EventKind
	PairingCode string
	Identity    string
	Err         error
}

// Liveness is the result of the lightweight probe on an existing client.
type Liveness struct {
	Connected bool
	LoggedIn  bool
}

// Client is the capability surface of one tenant's automation client. The
// production implementation wraps whatsmeow; tests provide fakes.
type Client interface {
	// Start begins connecting. It does not block until readiness: readiness,
	// pairing and failures arrive on Events.
	Start(ctx context.Context) error
	// Events delivers lifecycle events. The channel is never closed; callers
	// stop consuming when they observe a terminal event or tear down.
	Events() <-chan Event
	// Liveness is a cheap are-you-still-responsive probe.
	Liveness() Liveness
	// SendMessage delivers text to a normalized destination address.
	SendMessage(ctx context.Context, destination, text string) error
	// Destroy disconnects and releases all client resources.
	Destroy()
}

// ClientFactory constructs a client scoped to one workshop's local session
// directory. The directory must hold any restored pairing material before
// New is called: the client reads it at construction time.
type ClientFactory interface {
	New(ctx context.Context, workshopID int64, sessionDir string) (Client, error)
}

// SessionState mirrors domain.WaSession status values.
type SessionState = string

const (
	StateDisconnected    SessionState = domain.SessionDisconnected
	StateAwaitingPairing SessionState = domain.SessionAwaitingPairing
	StateConnected       SessionState = domain.SessionConnected
	StateError           SessionState = domain.SessionError
)

// Status is the full externally visible session status of one workshop.
// Transitions always write the whole value, never a partial patch.
type Status struct {
	WorkshopID     int64
	State          SessionState
	PairingImage   string
	PairedIdentity string
	UpdatedAt      time.Time
}

// StatusSink records the status projection. Implementations must treat each
// Upsert as a full overwrite of the workshop's document.
type StatusSink interface {
	Upsert(ctx context.Context, status Status) error
	Delete(ctx context.Context, workshopID int64) error
}
