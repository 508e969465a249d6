package metrics

import (
	"path"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

var (
	storage tstorage.Storage
	mux     sync.RWMutex
)

// InitMetrics opens the embedded time-series storage under the workdir.
func InitMetrics(workdir string) error {
	mux.Lock()
	defer mux.Unlock()
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(path.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(time.Hour*24*30),
	)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

// SetGauge records the current value of a named gauge.
func SetGauge(name string, value int64) {
	mux.RLock()
	defer mux.RUnlock()
	if storage == nil {
		return
	}
	_ = storage.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
		},
	})
}

// Query returns the datapoints of a metric in the [start, end] window.
func Query(name string, start, end time.Time) ([]*tstorage.DataPoint, error) {
	mux.RLock()
	defer mux.RUnlock()
	if storage == nil {
		return nil, nil
	}
	points, err := storage.Select(name, nil, start.Unix(), end.Unix())
	if err != nil {
		if err == tstorage.ErrNoDataPoints {
			return nil, nil
		}
		return nil, err
	}
	return points, nil
}

// Close flushes buffered datapoints to disk.
func Close() error {
	mux.Lock()
	defer mux.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
