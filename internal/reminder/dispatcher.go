// Package reminder runs the daily batch that messages every customer whose
// next service falls due today, one workshop session at a time, without one
// tenant's failure touching another's reminders.
package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/domain"
	"github.com/MHassaanT/motomind-backend/internal/whatsapp"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

const defaultWorkers = 8

// RecordSource is the records collaborator: due-record queries plus outcome
// annotation.
type RecordSource interface {
	DueToday(ctx context.Context, day time.Time) ([]domain.ServiceRecord, error)
	MarkOutcome(ctx context.Context, recordID int64, sent bool, note string) error
}

// Sender resolves a workshop session and delivers one message. Implemented
// by *whatsapp.Registry.
type Sender interface {
	Send(ctx context.Context, workshopID int64, destination, text string) error
}

// Settings exposes the runtime configuration the dispatcher reads each run:
// the reminder enable switch, the message template and the country prefix.
// Implemented by app.AppContext.
type Settings interface {
	GetSettingsStringValue(category, name string) string
	GetSettingsBoolValue(category, name string) bool
}

type Dispatcher struct {
	records  RecordSource
	sender   Sender
	workers  int
	settings Settings
}

type DispatcherOption func(*Dispatcher)

// WithSettings lets the dispatcher honor the whatsapp settings rows
// (ReminderEnabled, ReminderTemplate, CountryPrefix).
func WithSettings(s Settings) DispatcherOption {
	return func(d *Dispatcher) { d.settings = s }
}

func NewDispatcher(records RecordSource, sender Sender, workers int, opts ...DispatcherOption) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	d := &Dispatcher{records: records, sender: sender, workers: workers}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes every record due today. Per-record failures are logged and
// annotated on the record; the batch always visits all due records.
func (d *Dispatcher) Run(ctx context.Context) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error("reminder: dispatch run panic:", err)
		}
	}()

	if d.settings != nil && !d.settings.GetSettingsBoolValue("whatsapp", "ReminderEnabled") {
		zap.L().Info("reminder: disabled by settings, skipping run")
		return
	}

	today := time.Now()
	records, err := d.records.DueToday(ctx, today)
	if err != nil {
		zap.L().Error("reminder: due records query failed", zap.Error(err))
		return
	}
	if len(records) == 0 {
		zap.L().Info("reminder: no records due", zap.Time("day", today))
		return
	}
	zap.L().Info("reminder: dispatch run starting",
		zap.Int("due", len(records)), zap.Time("day", today))

	pool, err := ants.NewPool(d.workers)
	if err != nil {
		zap.L().Error("reminder: worker pool init failed", zap.Error(err))
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var sent, failed int64
	var counterMux sync.Mutex
	for i := range records {
		rec := records[i]
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			ok := d.dispatchOne(ctx, rec)
			counterMux.Lock()
			if ok {
				sent++
			} else {
				failed++
			}
			counterMux.Unlock()
		}); err != nil {
			wg.Done()
			zap.L().Error("reminder: submit failed",
				zap.Int64("record_id", rec.ID), zap.Error(err))
		}
	}
	wg.Wait()
	zap.L().Info("reminder: dispatch run finished",
		zap.Int64("sent", sent), zap.Int64("failed", failed))
}

// dispatchOne handles one record completely: any failure is caught here so
// the batch never aborts.
func (d *Dispatcher) dispatchOne(ctx context.Context, rec domain.ServiceRecord) bool {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error("reminder: record dispatch panic:", err)
		}
	}()

	var prefix, tpl string
	if d.settings != nil {
		prefix = d.settings.GetSettingsStringValue("whatsapp", "CountryPrefix")
		tpl = d.settings.GetSettingsStringValue("whatsapp", "ReminderTemplate")
	}
	destination := whatsapp.NormalizeDestinationWithPrefix(rec.CustomerPhone, prefix)
	text := FormatReminder(rec, tpl)

	if err := d.sender.Send(ctx, rec.WorkshopID, destination, text); err != nil {
		zap.L().Warn("reminder: send failed",
			zap.Int64("record_id", rec.ID),
			zap.Int64("workshop_id", rec.WorkshopID),
			zap.Error(err))
		d.mark(ctx, rec.ID, false, err.Error())
		return false
	}

	zap.L().Info("reminder: sent",
		zap.Int64("record_id", rec.ID),
		zap.Int64("workshop_id", rec.WorkshopID))
	d.mark(ctx, rec.ID, true, "sent")
	return true
}

func (d *Dispatcher) mark(ctx context.Context, recordID int64, sent bool, note string) {
	if err := d.records.MarkOutcome(ctx, recordID, sent, note); err != nil {
		zap.L().Error("reminder: outcome annotation failed",
			zap.Int64("record_id", recordID), zap.Error(err))
	}
}
