package notify

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cloud-shuttle/muster/internal/gateway"
	"github.com/cloud-shuttle/muster/pkg/telemetry"
	"github.com/cloud-shuttle/muster/pkg/types"
)

// Result reports what one dispatch did
type Result struct {
	Sent           SendKind
	Reported       bool
	DeliveryFailed bool
	Escalated      bool
}

// Escalator recruits peers for a task overdue past the threshold.
// Wired to the shame service; nil disables escalation.
type Escalator interface {
	NotifyPeers(ctx context.Context, key types.TaskKey) (int, error)
}

// Dispatcher turns classified candidates into at most one send per
// pass, enforcing the suppression windows via the task's stored
// timestamps
type Dispatcher struct {
	gw               gateway.Gateway
	escalator        Escalator
	reminderInterval time.Duration
	reportInterval   time.Duration
	overdueThreshold time.Duration
}

// NewDispatcher creates a dispatcher. escalator may be nil.
func NewDispatcher(gw gateway.Gateway, escalator Escalator, reminderInterval, reportInterval, overdueThreshold time.Duration) *Dispatcher {
	return &Dispatcher{
		gw:               gw,
		escalator:        escalator,
		reminderInterval: reminderInterval,
		reportInterval:   reportInterval,
		overdueThreshold: overdueThreshold,
	}
}

// Dispatch decides and delivers for one candidate. It stamps LastSent
// or LastReported on the task when a message actually fires, and never
// returns a delivery failure to the caller; failures are classified
// and reported to the task's manager instead.
func (d *Dispatcher) Dispatch(ctx context.Context, t *types.Task, delta types.Delta, now time.Time) Result {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNotifyDispatch, telemetry.TaskAttrs(t.Key)...)
	defer span.End()

	kind := Decide(t, delta, now, d.reminderInterval, d.reportInterval)
	span.SetAttributes(
		attribute.String(telemetry.KeyTaskDelta, string(delta)),
		attribute.String(telemetry.KeySendKind, string(kind)),
	)
	result := Result{Sent: SendNone}

	switch {
	case kind == SendNone:
		return result

	case kind == SendMissingData:
		if d.reportToManager(ctx, t, formatMissingData(t)) {
			reportedAt := now
			t.LastReported = &reportedAt
			result.Reported = true
		}
		return result

	case kind.OwnerFacing():
		if !t.Owner.Reachable() {
			// Unreachable owners are skipped silently; LastSent stays
			// unset so a later verification still notifies.
			return result
		}

		if _, err := d.gw.Send(ctx, t.Owner.Channel, formatOwnerMessage(kind, t)); err != nil {
			telemetry.RecordError(span, err, telemetry.ErrorCategoryDelivery)
			d.reportDeliveryFailure(ctx, t, err)
			result.DeliveryFailed = true
			return result
		}

		sentAt := now
		t.LastSent = &sentAt
		result.Sent = kind

		if kind == SendLate && t.OverdueBy(now) >= d.overdueThreshold && d.escalator != nil {
			if _, err := d.escalator.NotifyPeers(ctx, t.Key); err != nil {
				log.Printf("[notify] escalation for %s failed: %v", t.Key, err)
			} else {
				result.Escalated = true
			}
		}
	}

	return result
}

// reportDeliveryFailure classifies a delivery error and tells the
// task's manager about it
func (d *Dispatcher) reportDeliveryFailure(ctx context.Context, t *types.Task, err error) {
	reason := err.Error()
	if de, ok := gateway.AsDelivery(err); ok {
		reason = string(de.Kind)
	}
	log.Printf("[notify] delivery to %s for %s failed: %v", t.Owner.Name, t.Key, err)
	d.reportToManager(ctx, t, formatDeliveryFailure(t, reason))
}

func (d *Dispatcher) reportToManager(ctx context.Context, t *types.Task, text string) bool {
	if !t.Manager.Reachable() {
		return false
	}
	if _, err := d.gw.Send(ctx, t.Manager.Channel, text); err != nil {
		log.Printf("[notify] manager report for %s failed: %v", t.Key, err)
		return false
	}
	return true
}
