package reminder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/domain"
)

type fakeRecords struct {
	mu       sync.Mutex
	due      []domain.ServiceRecord
	dueErr   error
	outcomes map[int64]string
}

func (f *fakeRecords) DueToday(ctx context.Context, day time.Time) ([]domain.ServiceRecord, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	return f.due, nil
}

func (f *fakeRecords) MarkOutcome(ctx context.Context, recordID int64, sent bool, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = make(map[int64]string)
	}
	if sent {
		f.outcomes[recordID] = "sent"
	} else {
		f.outcomes[recordID] = "failed: " + note
	}
	return nil
}

type fakeSender struct {
	mu       sync.Mutex
	failFor  map[int64]error
	panicFor int64
	sent     []int64
}

func (f *fakeSender) Send(ctx context.Context, workshopID int64, destination, text string) error {
	if workshopID == f.panicFor && f.panicFor != 0 {
		panic("session blew up")
	}
	if err, failing := f.failFor[workshopID]; failing {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, workshopID)
	f.mu.Unlock()
	return nil
}

func dueRecord(id, workshopID int64, phone string) domain.ServiceRecord {
	return domain.ServiceRecord{
		ID:            id,
		WorkshopID:    workshopID,
		CustomerName:  "Customer",
		CustomerPhone: phone,
		Status:        domain.RecordStatusFinalized,
	}
}

func TestDispatchMarksEveryRecord(t *testing.T) {
	records := &fakeRecords{due: []domain.ServiceRecord{
		dueRecord(1, 10, "0300-1111111"),
		dueRecord(2, 20, "0300-2222222"),
		dueRecord(3, 30, "0300-3333333"),
	}}
	sender := &fakeSender{}
	NewDispatcher(records, sender, 2).Run(context.Background())

	records.mu.Lock()
	defer records.mu.Unlock()
	for _, id := range []int64{1, 2, 3} {
		if records.outcomes[id] != "sent" {
			t.Fatalf("record %d outcome = %q, want sent", id, records.outcomes[id])
		}
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	records := &fakeRecords{due: []domain.ServiceRecord{
		dueRecord(1, 10, "0300-1111111"),
		dueRecord(2, 20, "0300-2222222"),
		dueRecord(3, 30, "0300-3333333"),
	}}
	sender := &fakeSender{failFor: map[int64]error{
		20: errors.New("initialization timed out"),
	}}
	NewDispatcher(records, sender, 1).Run(context.Background())

	records.mu.Lock()
	defer records.mu.Unlock()
	if records.outcomes[1] != "sent" || records.outcomes[3] != "sent" {
		t.Fatalf("healthy records not sent: %v", records.outcomes)
	}
	if !strings.Contains(records.outcomes[2], "initialization timed out") {
		t.Fatalf("failed record outcome = %q, want annotated failure", records.outcomes[2])
	}
}

func TestDispatchSurvivesSenderPanic(t *testing.T) {
	records := &fakeRecords{due: []domain.ServiceRecord{
		dueRecord(1, 10, "0300-1111111"),
		dueRecord(2, 20, "0300-2222222"),
	}}
	sender := &fakeSender{panicFor: 10}
	NewDispatcher(records, sender, 1).Run(context.Background())

	records.mu.Lock()
	defer records.mu.Unlock()
	if records.outcomes[2] != "sent" {
		t.Fatalf("record after panicking workshop not processed: %v", records.outcomes)
	}
}

func TestDispatchNormalizesDestination(t *testing.T) {
	records := &fakeRecords{due: []domain.ServiceRecord{
		dueRecord(1, 10, "0300-1234567"),
	}}
	var gotDest string
	sender := senderFunc(func(ctx context.Context, workshopID int64, destination, text string) error {
		gotDest = destination
		return nil
	})
	NewDispatcher(records, sender, 1).Run(context.Background())

	if gotDest != "923001234567@c.us" {
		t.Fatalf("destination = %q", gotDest)
	}
}

type senderFunc func(ctx context.Context, workshopID int64, destination, text string) error

func (f senderFunc) Send(ctx context.Context, workshopID int64, destination, text string) error {
	return f(ctx, workshopID, destination, text)
}

type fakeSettings map[string]string

func (f fakeSettings) GetSettingsStringValue(category, name string) string {
	return f[category+"."+name]
}

func (f fakeSettings) GetSettingsBoolValue(category, name string) bool {
	return f[category+"."+name] == "true"
}

func TestDispatchUsesConfiguredPrefixAndTemplate(t *testing.T) {
	rec := dueRecord(1, 10, "0812-345-678")
	rec.CustomerName = "Budi"
	rec.Bike = "CB150"
	records := &fakeRecords{due: []domain.ServiceRecord{rec}}
	settings := fakeSettings{
		"whatsapp.ReminderEnabled":  "true",
		"whatsapp.CountryPrefix":    "62",
		"whatsapp.ReminderTemplate": "Hi {name}, your {bike} is due",
	}

	var gotDest, gotText string
	sender := senderFunc(func(ctx context.Context, workshopID int64, destination, text string) error {
		gotDest, gotText = destination, text
		return nil
	})
	NewDispatcher(records, sender, 1, WithSettings(settings)).Run(context.Background())

	if gotDest != "62812345678@c.us" {
		t.Fatalf("destination = %q, want configured prefix applied", gotDest)
	}
	if gotText != "Hi Budi, your CB150 is due" {
		t.Fatalf("text = %q, want rendered template", gotText)
	}
}

func TestDispatchSkipsWhenDisabled(t *testing.T) {
	records := &fakeRecords{due: []domain.ServiceRecord{
		dueRecord(1, 10, "0300-1111111"),
	}}
	sender := &fakeSender{}
	settings := fakeSettings{"whatsapp.ReminderEnabled": "false"}
	NewDispatcher(records, sender, 1, WithSettings(settings)).Run(context.Background())

	records.mu.Lock()
	defer records.mu.Unlock()
	if len(records.outcomes) != 0 || len(sender.sent) != 0 {
		t.Fatalf("disabled run still dispatched: outcomes=%v sent=%v",
			records.outcomes, sender.sent)
	}
}
