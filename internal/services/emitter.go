package services

import (
	"context"

	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/realtime"
	"github.com/citrusqa/bitacora-backend/internal/realtime/bus"
)

// SSEEmitter decouples services from the delivery path: single-process setups
// broadcast straight into the hub, multi-process setups publish to the bus and
// every instance's forwarder feeds its own hub.
type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

type localEmitter struct {
	hub *realtime.SSEHub
}

func NewLocalEmitter(hub *realtime.SSEHub) SSEEmitter {
	return &localEmitter{hub: hub}
}

func (e *localEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	if e == nil || e.hub == nil {
		return
	}
	e.hub.Broadcast(msg)
}

type busEmitter struct {
	log *logger.Logger
	bus bus.Bus
}

func NewBusEmitter(log *logger.Logger, b bus.Bus) SSEEmitter {
	return &busEmitter{log: log.With("service", "BusEmitter"), bus: b}
}

func (e *busEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, msg); err != nil {
		e.log.Warn("Failed to publish realtime message", "channel", msg.Channel, "event", msg.Event, "error", err)
	}
}
