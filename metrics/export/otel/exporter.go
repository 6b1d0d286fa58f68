package otel

import (
	"context"
	"errors"
	"fmt"

	campusAuth "github.com/MrEthical07/campusAuth"
	"github.com/MrEthical07/campusAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() campusAuth.MetricsSnapshot
	MailDropped() uint64
}

// reading is what one collection pass reads from the source.
type reading struct {
	snapshot campusAuth.MetricsSnapshot
	buckets  map[campusAuth.MetricID][8]uint64
	dropped  uint64
}

type observation struct {
	instrument metric.Int64Observable
	value      func(r *reading) uint64
}

// OTelExporter publishes engine metrics as observable instruments. Values
// are read from the engine on every collection.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	observations []observation
}

// NewOTelExporter registers observable instruments for engine on meter.
func NewOTelExporter(meter metric.Meter, engine *campusAuth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter for any metrics source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}

	addCounter := func(name, help string, value func(r *reading) uint64) error {
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return fmt.Errorf("create observable counter %s: %w", name, err)
		}
		e.observations = append(e.observations, observation{instrument: ins, value: value})
		return nil
	}
	addGauge := func(name, help string, value func(r *reading) uint64) error {
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
		if err != nil {
			return fmt.Errorf("create observable gauge %s: %w", name, err)
		}
		e.observations = append(e.observations, observation{instrument: ins, value: value})
		return nil
	}

	for _, def := range internaldefs.CounterDefs {
		def := def
		if err := addCounter(def.Name, def.Help, func(r *reading) uint64 { return r.snapshot.Counters[def.ID] }); err != nil {
			return nil, err
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		def := def
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			i := i
			name := def.Name + "_bucket_le_" + suffix
			if err := addGauge(name, "Cumulative histogram bucket count.", func(r *reading) uint64 { return r.buckets[def.ID][i] }); err != nil {
				return nil, err
			}
		}
		last := len(internaldefs.HistogramBoundSuffix) - 1
		if err := addGauge(def.Name+"_count", "Histogram total sample count.", func(r *reading) uint64 { return r.buckets[def.ID][last] }); err != nil {
			return nil, err
		}
	}

	if err := addCounter(internaldefs.MailDroppedName, internaldefs.MailDroppedHelp, func(r *reading) uint64 { return r.dropped }); err != nil {
		return nil, err
	}

	instruments := make([]metric.Observable, len(e.observations))
	for i, o := range e.observations {
		instruments[i] = o.instrument
	}

	registration, err := meter.RegisterCallback(e.collect, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) collect(_ context.Context, observer metric.Observer) error {
	r := &reading{
		snapshot: e.source.MetricsSnapshot(),
		dropped:  e.source.MailDropped(),
		buckets:  make(map[campusAuth.MetricID][8]uint64, len(internaldefs.HistogramDefs)),
	}
	for _, def := range internaldefs.HistogramDefs {
		r.buckets[def.ID] = internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(r.snapshot.Histograms[def.ID]))
	}

	for _, o := range e.observations {
		observer.ObserveInt64(o.instrument, int64(o.value(r)))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
