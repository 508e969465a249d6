package whatsapp

import (
	"context"
	"strings"
	"testing"
)

func TestPairingImageIsDataURL(t *testing.T) {
	factory := readyFactory()
	r, status, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	if _, err := r.GetOrCreate(context.Background(), 1); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	writes := status.all()
	if len(writes) == 0 {
		t.Fatal("no status writes")
	}
	image := writes[0].PairingImage
	if !strings.HasPrefix(image, "data:image/png;base64,") {
		t.Fatalf("pairing image is not a png data url (len %d)", len(image))
	}
}

func TestIdentityRetainedAcrossDisconnect(t *testing.T) {
	factory := &fakeFactory{build: func() *fakeClient {
		return newFakeClient(
			Event{Kind: EventPairingCode, PairingCode: "pair-me"},
			Event{Kind: EventReady, Identity: "923009998877"},
			Event{Kind: EventDisconnected},
		)
	}}
	r, status, _ := newTestRegistry(t, factory)
	defer r.Shutdown()

	if _, err := r.GetOrCreate(context.Background(), 4); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	waitFor(t, func() bool {
		writes := status.all()
		return len(writes) > 0 && writes[len(writes)-1].State == StateDisconnected
	}, "disconnected status write never arrived")

	writes := status.all()
	last := writes[len(writes)-1]
	if last.PairedIdentity != "923009998877" {
		t.Fatalf("identity after disconnect = %q, want retained", last.PairedIdentity)
	}
	if last.PairingImage != "" {
		t.Fatal("pairing image survived past awaiting_pairing")
	}
}
