package core

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/warasin/roomsync/metrics"
)

const natsSubjectPrefix = "roomsync.messages"

// NATSRealtime is a Realtime implementation over a NATS connection, for
// deployments where more than one server process fans out insert events.
// Each room maps to its own subject; events are fire-and-forget because the
// rows themselves are already persisted before publishing.
type NATSRealtime struct {
	nc     *nats.Conn
	logger *slog.Logger
	buffer int
}

type NATSOption func(*NATSRealtime)

func WithNATSLogger(l *slog.Logger) NATSOption {
	return func(r *NATSRealtime) {
		r.logger = l
	}
}

func NewNATSRealtime(url string, opts ...NATSOption) (*NATSRealtime, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats.Connect: %w", err)
	}

	r := &NATSRealtime{
		nc:     nc,
		logger: slog.Default(),
		buffer: defaultSubscriptionBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func roomSubject(roomID string) string {
	return fmt.Sprintf("%s.%s", natsSubjectPrefix, roomID)
}

func (r *NATSRealtime) Publish(event InsertEvent) {
	metrics.RealtimeEventsPublished.Inc()

	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("marshal insert event", slog.String("error", err.Error()))
		return
	}
	if err := r.nc.Publish(roomSubject(event.RoomID), data); err != nil {
		r.logger.Error("publish insert event",
			slog.String("room_id", event.RoomID),
			slog.String("error", err.Error()))
	}
}

func (r *NATSRealtime) Subscribe(roomID string) (*Subscription, error) {
	var natsSub *nats.Subscription

	sub := newSubscription(roomID, r.buffer, func() {
		if natsSub == nil {
			return
		}
		if err := natsSub.Unsubscribe(); err != nil {
			r.logger.Warn("unsubscribe", slog.String("error", err.Error()))
		}
	})

	var err error
	natsSub, err = r.nc.Subscribe(roomSubject(roomID), func(msg *nats.Msg) {
		var event InsertEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			r.logger.Error("unmarshal insert event", slog.String("error", err.Error()))
			return
		}
		sub.deliver(event)
	})
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("nc.Subscribe: %w", err)
	}
	return sub, nil
}

func (r *NATSRealtime) Close() {
	r.nc.Close()
}
