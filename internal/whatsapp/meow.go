package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// MeowFactory builds whatsmeow-backed clients. Each workshop gets its own
// sqlite credential store inside its session directory, so the archive
// bridge can snapshot the whole directory.
type MeowFactory struct{}

func NewMeowFactory() *MeowFactory {
	return &MeowFactory{}
}

func (f *MeowFactory) New(_ context.Context, workshopID int64, sessionDir string) (Client, error) {
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create session dir")
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(sessionDir, "session.db"))
	container, err := sqlstore.New("sqlite3", dsn, waLog.Noop)
	if err != nil {
		return nil, errors.Wrap(err, "open whatsmeow store")
	}
	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, errors.Wrap(err, "load whatsmeow device")
	}

	m := &meowClient{
		workshopID: workshopID,
		cli:        whatsmeow.NewClient(device, waLog.Noop),
		events:     make(chan Event, 8),
		stop:       make(chan struct{}),
	}
	m.cli.AddEventHandler(m.onEvent)
	return m, nil
}

type meowClient struct {
	workshopID int64
	cli        *whatsmeow.Client
	events     chan Event
	stop       chan struct{}
	stopOnce   sync.Once
}

func (m *meowClient) Start(ctx context.Context) error {
	if m.cli.Store.ID == nil {
		// never paired (or archive restore missed): pairing flow
		qrChan, err := m.cli.GetQRChannel(ctx)
		if err != nil {
			return errors.Wrap(err, "qr channel")
		}
		if err := m.cli.Connect(); err != nil {
			return errors.Wrap(err, "connect")
		}
		go m.forwardQR(qrChan)
		return nil
	}
	return m.cli.Connect()
}

func (m *meowClient) forwardQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			m.emit(Event{Kind: EventPairingCode, PairingCode: item.Code})
		case "success":
			// the Connected event carries readiness
		default:
			// pairing window timed out or errored; the registry builds a
			// fresh handle on the next attempt
			zap.L().Info("whatsapp: pairing ended without login",
				zap.Int64("workshop_id", m.workshopID),
				zap.String("event", item.Event))
			m.emit(Event{Kind: EventDisconnected})
		}
	}
}

func (m *meowClient) onEvent(raw interface{}) {
	switch evt := raw.(type) {
	case *events.Connected:
		m.emit(Event{Kind: EventReady, Identity: m.identity()})
	case *events.StreamReplaced:
		m.emit(Event{Kind: EventDisconnected})
	case *events.Disconnected:
		m.emit(Event{Kind: EventDisconnected})
	case *events.LoggedOut:
		m.emit(Event{Kind: EventAuthFailure, Err: errors.Errorf("device logged out (reason %v)", evt.Reason)})
	}
}

func (m *meowClient) identity() string {
	if id := m.cli.Store.ID; id != nil {
		return id.User
	}
	return ""
}

func (m *meowClient) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.stop:
	}
}

func (m *meowClient) Events() <-chan Event {
	return m.events
}

func (m *meowClient) Liveness() Liveness {
	return Liveness{Connected: m.cli.IsConnected(), LoggedIn: m.cli.IsLoggedIn()}
}

func (m *meowClient) SendMessage(ctx context.Context, destination, text string) error {
	jid, err := waTypes.ParseJID(destination)
	if err != nil {
		return errors.Wrap(err, "invalid destination")
	}
	if jid.Server == waTypes.LegacyUserServer {
		jid.Server = waTypes.DefaultUserServer
	}
	_, err = m.cli.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	return err
}

func (m *meowClient) Destroy() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.cli.Disconnect()
	})
}
