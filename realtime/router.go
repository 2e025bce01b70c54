package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/metrics"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Transport delivers an encoded message to every session in a group,
// wherever that session is connected.
type Transport interface {
	Publish(ctx context.Context, group string, msg []byte) error
}

// Router turns domain events into client messages and hands them to the
// transport. Delivery is best effort: failures are logged and never returned.
type Router struct {
	transport Transport
	metrics   *metrics.Recorder
}

// NewRouter returns a Router publishing through t
func NewRouter(t Transport, rec *metrics.Recorder) *Router {
	return &Router{transport: t, metrics: rec}
}

// Targets lists the groups an event is delivered to. Dispatchers get every
// event; the assigned paramedic gets events that name them, except alarms.
func Targets(e models.Event) []string {
	groups := []string{DispatcherGroup}
	if e.ParamedicID != "" && !e.DispatcherOnly() {
		groups = append(groups, ParamedicGroup(e.ParamedicID))
	}
	return groups
}

// Notify implements the dispatch notifier
func (r *Router) Notify(ctx context.Context, e models.Event) {
	msg, err := json.Marshal(models.Envelope{Type: e.Type, Event: string(e.Kind), Data: e.Data})
	if err != nil {
		zap.S().Errorw("failed to encode notification", "event", e.Kind, "error", err)
		r.metrics.Notification(e.Type, "encode_error")
		return
	}
	for _, group := range Targets(e) {
		if err := r.transport.Publish(ctx, group, msg); err != nil {
			zap.S().Warnw("failed to publish notification", "event", e.Kind, "group", group, "error", err)
			r.metrics.Notification(e.Type, "failed")
			continue
		}
		r.metrics.Notification(e.Type, "sent")
	}
}
