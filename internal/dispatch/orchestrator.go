package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/command"
	"github.com/fieldlink/fieldlink-core/internal/eventbus"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/logging"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/mqtt"
	"github.com/fieldlink/fieldlink-core/internal/metrics"
	"github.com/fieldlink/fieldlink-core/internal/protocol"
)

// Catalog looks up command definitions. *command.Catalog implements it.
type Catalog interface {
	Lookup(id int) (command.Command, bool)
}

// Membership answers which coordinators exist and which nodes they own.
// *coordinator.SQLiteRepository implements it.
type Membership interface {
	ExistingCoordinators(ctx context.Context, ids []int) (map[int]bool, error)
	NodeOwners(ctx context.Context, coordinatorIDs []int) (map[int]int, error)
}

// FramePublisher sends frames to devices. *broker.Client implements it.
// PublishFrame errors wrap mqtt.ErrNotConnected when the link is down.
type FramePublisher interface {
	PublishFrame(ctx context.Context, frame protocol.DeviceFrame) error
	IsConnected() bool
}

// EventPublisher is the event bus side the orchestrator writes to.
type EventPublisher interface {
	Publish(topic eventbus.Topic, payload any)
}

// Metrics receives dispatch counters. *metrics.Metrics implements it.
type Metrics interface {
	DispatchResult(result string)
	FramesPublished(n int)
}

type nopMetrics struct{}

func (nopMetrics) DispatchResult(string) {}
func (nopMetrics) FramesPublished(int)   {}

// Result describes an accepted dispatch. On ErrPartialPublish, Frames is
// the number of frames that did go out.
type Result struct {
	OrderID int64 `json:"orderId"`
	Frames  int   `json:"frames"`
}

// UsageEvent is published on TopicCommandUsage once per successful dispatch.
type UsageEvent struct {
	CommandID    int       `json:"commandId"`
	OrderID      int64     `json:"orderId"`
	Frames       int       `json:"frames"`
	RequestedBy  int       `json:"-"`
	DispatchedAt time.Time `json:"-"`
}

// Orchestrator validates dispatch requests and fans them out to devices.
type Orchestrator struct {
	catalog    Catalog
	membership Membership
	frames     FramePublisher
	events     EventPublisher
	buildingID int
	logger     *logging.Logger
	metrics    Metrics

	orderSeq atomic.Int64
}

// Config holds the orchestrator's collaborators. Metrics may be nil.
type Config struct {
	Catalog    Catalog
	Membership Membership
	Frames     FramePublisher
	Events     EventPublisher
	BuildingID int
	Logger     *logging.Logger
	Metrics    Metrics
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	m := cfg.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &Orchestrator{
		catalog:    cfg.Catalog,
		membership: cfg.Membership,
		frames:     cfg.Frames,
		events:     cfg.Events,
		buildingID: cfg.BuildingID,
		logger:     cfg.Logger.With("component", "dispatch"),
		metrics:    m,
	}
}

// target is one frame's address.
type target struct {
	coordID int
	nodeID  int
}

// Dispatch validates req, assigns an order id and publishes one frame per
// target. Validation is fail-fast: the first failing check is returned and
// nothing is published.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) (Result, error) {
	res, err := o.dispatch(ctx, req)
	o.metrics.DispatchResult(resultLabel(err))
	return res, err
}

func (o *Orchestrator) dispatch(ctx context.Context, req Request) (Result, error) {
	cmd, ok := o.catalog.Lookup(req.CommandID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrCommandNotFound, req.CommandID)
	}

	coordinators := dedupe(req.CoordinatorIDs)
	if len(coordinators) == 0 {
		return Result{}, fmt.Errorf("%w: coordinatorIds must not be empty", ErrValidation)
	}

	targets, err := o.resolveTargets(ctx, cmd, coordinators, dedupe(req.NodeIDs))
	if err != nil {
		return Result{}, err
	}

	if len(req.Parameters) != len(cmd.Parameters) {
		return Result{}, fmt.Errorf("%w: parameters count mismatch", ErrValidation)
	}
	for i, p := range cmd.Parameters {
		if err := p.Check(req.Parameters[i]); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	if !o.frames.IsConnected() {
		return Result{}, ErrBrokerUnavailable
	}

	orderID := o.orderSeq.Add(1)
	sent, err := o.publish(ctx, cmd, orderID, targets, req.Parameters)
	o.metrics.FramesPublished(sent)
	if err != nil && sent == 0 && errors.Is(err, mqtt.ErrNotConnected) {
		o.logger.Warn("broker link dropped before the first frame",
			"command", cmd.Name, "order_id", orderID, "error", err)
		return Result{}, fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}
	if err != nil {
		o.logger.Warn("dispatch stopped part-way",
			"command", cmd.Name, "order_id", orderID,
			"sent", sent, "total", len(targets), "error", err)
		return Result{OrderID: orderID, Frames: sent},
			fmt.Errorf("%w: %d of %d frames published: %w", ErrPartialPublish, sent, len(targets), err)
	}

	o.events.Publish(eventbus.TopicCommandUsage, UsageEvent{
		CommandID:    cmd.ID,
		OrderID:      orderID,
		Frames:       sent,
		RequestedBy:  req.RequestedBy,
		DispatchedAt: time.Now().UTC(),
	})
	o.logger.Info("command dispatched",
		"command", cmd.Name, "order_id", orderID, "frames", sent, "user_id", req.RequestedBy)

	return Result{OrderID: orderID, Frames: sent}, nil
}

// resolveTargets checks the coordinators exist and, for node commands,
// that every node belongs to one of them. Targets come back in
// coordinator order, then requested node order.
func (o *Orchestrator) resolveTargets(ctx context.Context, cmd command.Command, coordinators, nodes []int) ([]target, error) {
	known, err := o.membership.ExistingCoordinators(ctx, coordinators)
	if err != nil {
		return nil, fmt.Errorf("checking coordinators: %w", err)
	}
	for _, id := range coordinators {
		if !known[id] {
			return nil, fmt.Errorf("%w: coordinator %d not found", ErrTargetNotFound, id)
		}
	}

	if cmd.Target == command.TargetCoordinator {
		targets := make([]target, len(coordinators))
		for i, id := range coordinators {
			targets[i] = target{coordID: id}
		}
		return targets, nil
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: nodeIds must not be empty for %s", ErrValidation, cmd.Name)
	}

	owners, err := o.membership.NodeOwners(ctx, coordinators)
	if err != nil {
		return nil, fmt.Errorf("resolving nodes: %w", err)
	}

	byCoordinator := make(map[int][]int, len(coordinators))
	for _, node := range nodes {
		coord, ok := owners[node]
		if !ok {
			return nil, fmt.Errorf("%w: node %d not found", ErrTargetNotFound, node)
		}
		byCoordinator[coord] = append(byCoordinator[coord], node)
	}

	targets := make([]target, 0, len(nodes))
	for _, coord := range coordinators {
		for _, node := range byCoordinator[coord] {
			targets = append(targets, target{coordID: coord, nodeID: node})
		}
	}
	return targets, nil
}

// publish sends frames in order and stops at the first failure.
func (o *Orchestrator) publish(ctx context.Context, cmd command.Command, orderID int64, targets []target, params []float64) (int, error) {
	for i, t := range targets {
		frame, err := protocol.NewFrame(cmd.Code, o.buildingID, t.coordID, t.nodeID, orderID, params)
		if err != nil {
			return i, err
		}
		if err := o.frames.PublishFrame(ctx, frame); err != nil {
			return i, err
		}
	}
	return len(targets), nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultAccepted
	case errors.Is(err, ErrValidation):
		return metrics.ResultValidation
	case errors.Is(err, ErrTargetNotFound):
		return metrics.ResultTargetNotFound
	case errors.Is(err, ErrBrokerUnavailable):
		return metrics.ResultBrokerUnavailable
	case errors.Is(err, ErrPartialPublish):
		return metrics.ResultPartialPublish
	default:
		return "error"
	}
}
