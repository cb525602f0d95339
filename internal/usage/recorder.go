package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fieldlink/fieldlink-core/internal/broker"
	"github.com/fieldlink/fieldlink-core/internal/dispatch"
	"github.com/fieldlink/fieldlink-core/internal/eventbus"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/logging"
)

// TimeSeries receives points for the time-series database.
// *influxdb.Client implements it.
type TimeSeries interface {
	WriteCommandUsage(commandID int, orderID int64, frames int, at time.Time)
	WriteDeviceResponse(code, coordID, nodeID, value int, at time.Time)
}

// Metrics counts failed usage writes. *metrics.Metrics implements it.
type Metrics interface {
	UsageWriteFailed()
}

type nopMetrics struct{}

func (nopMetrics) UsageWriteFailed() {}

// Subscriber is the event bus side the recorder attaches to.
type Subscriber interface {
	Subscribe(name string, handler eventbus.Handler, topics ...eventbus.Topic) (unsubscribe func())
}

// Recorder stores command usage and device responses off the event bus.
// It is fire-and-forget from the dispatcher's point of view.
type Recorder struct {
	store   Store
	series  TimeSeries
	logger  *logging.Logger
	metrics Metrics
}

// NewRecorder creates a recorder. series and m may be nil.
func NewRecorder(store Store, series TimeSeries, logger *logging.Logger, m Metrics) *Recorder {
	if m == nil {
		m = nopMetrics{}
	}
	return &Recorder{
		store:   store,
		series:  series,
		logger:  logger.With("component", "usage"),
		metrics: m,
	}
}

// Attach subscribes the recorder to command usage and device responses.
func (r *Recorder) Attach(bus Subscriber) (unsubscribe func()) {
	return bus.Subscribe("usage-recorder", r.Handle,
		eventbus.TopicCommandUsage, eventbus.TopicDeviceResponse)
}

// Handle processes one bus event. Unknown payloads are ignored.
func (r *Recorder) Handle(ctx context.Context, ev eventbus.Event) error {
	switch p := ev.Payload.(type) {
	case dispatch.UsageEvent:
		return r.recordUsage(ctx, p)
	case broker.ResponseEvent:
		r.recordResponse(p)
	}
	return nil
}

func (r *Recorder) recordUsage(ctx context.Context, ev dispatch.UsageEvent) error {
	at := ev.DispatchedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if r.series != nil {
		r.series.WriteCommandUsage(ev.CommandID, ev.OrderID, ev.Frames, at)
	}

	err := r.store.Insert(ctx, Record{
		ID:         uuid.NewString(),
		CommandID:  ev.CommandID,
		OrderID:    ev.OrderID,
		UserID:     ev.RequestedBy,
		Frames:     ev.Frames,
		RecordedAt: at,
	})
	if err != nil {
		r.metrics.UsageWriteFailed()
		return err
	}
	return nil
}

func (r *Recorder) recordResponse(ev broker.ResponseEvent) {
	if r.series == nil {
		return
	}
	f := ev.Response.Frame()
	r.series.WriteDeviceResponse(f.Command, f.CoordID, f.NodeID, f.Params.Param1, ev.ReceivedAt)
}
