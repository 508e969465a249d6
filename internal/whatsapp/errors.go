package whatsapp

import "fmt"

// ConnectError reports that a workshop session could not be brought to the
// connected state: pairing never completed, initialization timed out, or the
// transport rejected the stored credentials.
type ConnectError struct {
	WorkshopID int64
	Reason     string
	Err        error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("whatsapp connect failed for workshop %d: %s: %v", e.WorkshopID, e.Reason, e.Err)
	}
	return fmt.Sprintf("whatsapp connect failed for workshop %d: %s", e.WorkshopID, e.Reason)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports that the transport rejected an outbound message.
type SendError struct {
	WorkshopID  int64
	Destination string
	Err         error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("whatsapp send to %s failed for workshop %d: %v", e.Destination, e.WorkshopID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// NotReadyError reports a send attempted with no live connected handle.
type NotReadyError struct {
	WorkshopID int64
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("whatsapp session for workshop %d is not connected", e.WorkshopID)
}

// PersistenceError reports an archive save/restore failure. It is always
// non-fatal: callers log it and carry on with the in-memory session.
type PersistenceError struct {
	WorkshopID int64
	Op         string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session archive %s failed for workshop %d: %v", e.Op, e.WorkshopID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
