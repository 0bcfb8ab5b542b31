package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloud-shuttle/muster/internal/gateway"
	"github.com/cloud-shuttle/muster/pkg/types"
)

type sentMessage struct {
	channel string
	text    string
}

type fakeGateway struct {
	sent    []sentMessage
	failFor map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: make(map[string]error)}
}

func (g *fakeGateway) Send(ctx context.Context, channel, text string) (string, error) {
	if err, ok := g.failFor[channel]; ok {
		return "", err
	}
	g.sent = append(g.sent, sentMessage{channel: channel, text: text})
	return "msg-1", nil
}

func (g *fakeGateway) SendWithAction(ctx context.Context, channel, text string, action gateway.Action) (string, error) {
	return g.Send(ctx, channel, text)
}

func (g *fakeGateway) sentTo(channel string) int {
	n := 0
	for _, m := range g.sent {
		if m.channel == channel {
			n++
		}
	}
	return n
}

type fakeEscalator struct {
	calls []types.TaskKey
	err   error
}

func (e *fakeEscalator) NotifyPeers(ctx context.Context, key types.TaskKey) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	e.calls = append(e.calls, key)
	return 2, nil
}

func TestDispatchSendsAndStamps(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	d := NewDispatcher(gw, nil, 24*time.Hour, 24*time.Hour, 48*time.Hour)

	task := completeTask(now)
	result := d.Dispatch(context.Background(), task, types.DeltaNew, now)

	if result.Sent != SendNew {
		t.Fatalf("Sent = %q; want %q", result.Sent, SendNew)
	}
	if task.LastSent == nil || !task.LastSent.Equal(now) {
		t.Errorf("LastSent = %v; want %v", task.LastSent, now)
	}
	if gw.sentTo("chan-alice") != 1 {
		t.Errorf("owner received %d messages; want 1", gw.sentTo("chan-alice"))
	}
}

func TestDispatchUnreachableOwnerSkipsWithoutStamp(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	d := NewDispatcher(gw, nil, 24*time.Hour, 24*time.Hour, 48*time.Hour)

	task := completeTask(now)
	task.Owner.Channel = ""
	result := d.Dispatch(context.Background(), task, types.DeltaNew, now)

	if result.Sent != SendNone {
		t.Errorf("Sent = %q; want none", result.Sent)
	}
	if task.LastSent != nil {
		t.Error("LastSent stamped for a skipped send")
	}
	if len(gw.sent) != 0 {
		t.Errorf("sent %d messages; want 0", len(gw.sent))
	}
}

func TestDispatchDeliveryFailureReportsManager(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	gw.failFor["chan-alice"] = &gateway.DeliveryError{
		Kind:    gateway.KindBlocked,
		Channel: "chan-alice",
		Err:     errors.New("forbidden: bot was blocked by the user"),
	}
	d := NewDispatcher(gw, nil, 24*time.Hour, 24*time.Hour, 48*time.Hour)

	task := completeTask(now)
	result := d.Dispatch(context.Background(), task, types.DeltaNew, now)

	if !result.DeliveryFailed {
		t.Error("DeliveryFailed not set")
	}
	if task.LastSent != nil {
		t.Error("LastSent stamped for a failed send")
	}
	if gw.sentTo("chan-mel") != 1 {
		t.Fatalf("manager received %d messages; want 1", gw.sentTo("chan-mel"))
	}
	if !strings.Contains(gw.sent[0].text, "blocked") {
		t.Errorf("manager report lacks failure kind: %q", gw.sent[0].text)
	}
}

func TestDispatchMissingDataReportStampsLastReported(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	d := NewDispatcher(gw, nil, 24*time.Hour, 24*time.Hour, 48*time.Hour)

	task := completeTask(now)
	task.Priority = ""
	result := d.Dispatch(context.Background(), task, types.DeltaMissingData, now)

	if !result.Reported {
		t.Error("Reported not set")
	}
	if task.LastReported == nil || !task.LastReported.Equal(now) {
		t.Errorf("LastReported = %v; want %v", task.LastReported, now)
	}
	if gw.sentTo("chan-alice") != 0 {
		t.Error("owner-facing message sent for an incomplete task")
	}
	if gw.sentTo("chan-mel") != 1 {
		t.Errorf("manager received %d messages; want 1", gw.sentTo("chan-mel"))
	}
	if !strings.Contains(gw.sent[0].text, "priority") {
		t.Errorf("report does not name the missing field: %q", gw.sent[0].text)
	}
}

func TestDispatchMissingDataUnreachableManagerDoesNotStamp(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	d := NewDispatcher(gw, nil, 24*time.Hour, 24*time.Hour, 48*time.Hour)

	task := completeTask(now)
	task.Priority = ""
	task.Manager.Channel = ""
	result := d.Dispatch(context.Background(), task, types.DeltaMissingData, now)

	if result.Reported {
		t.Error("Reported set with no reachable manager")
	}
	if task.LastReported != nil {
		t.Error("LastReported stamped with no report delivered")
	}
}

func TestDispatchLatePastThresholdEscalates(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	esc := &fakeEscalator{}
	d := NewDispatcher(gw, esc, 24*time.Hour, 24*time.Hour, 48*time.Hour)

	task := completeTask(now)
	due := now.Add(-72 * time.Hour)
	stale := now.Add(-25 * time.Hour)
	task.DueDate = &due
	task.LastSent = &stale

	result := d.Dispatch(context.Background(), task, types.DeltaUnchanged, now)

	if result.Sent != SendLate {
		t.Fatalf("Sent = %q; want %q", result.Sent, SendLate)
	}
	if !result.Escalated {
		t.Error("Escalated not set")
	}
	if len(esc.calls) != 1 || esc.calls[0] != task.Key {
		t.Errorf("escalator calls = %v; want one for %v", esc.calls, task.Key)
	}
}

func TestDispatchLateUnderThresholdDoesNotEscalate(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	esc := &fakeEscalator{}
	d := NewDispatcher(gw, esc, 24*time.Hour, 24*time.Hour, 48*time.Hour)

	task := completeTask(now)
	due := now.Add(-2 * time.Hour)
	stale := now.Add(-25 * time.Hour)
	task.DueDate = &due
	task.LastSent = &stale

	result := d.Dispatch(context.Background(), task, types.DeltaUnchanged, now)

	if result.Sent != SendLate {
		t.Fatalf("Sent = %q; want %q", result.Sent, SendLate)
	}
	if result.Escalated {
		t.Error("escalated a task only two hours overdue")
	}
	if len(esc.calls) != 0 {
		t.Errorf("escalator called %d times; want 0", len(esc.calls))
	}
}

func TestDispatchEscalatorFailureStillCountsSend(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	esc := &fakeEscalator{err: errors.New("store unavailable")}
	d := NewDispatcher(gw, esc, 24*time.Hour, 24*time.Hour, 48*time.Hour)

	task := completeTask(now)
	due := now.Add(-72 * time.Hour)
	task.DueDate = &due

	result := d.Dispatch(context.Background(), task, types.DeltaNew, now)

	// A brand-new task sends "new" even when overdue; no escalation
	// because escalation rides only on the late send.
	if result.Sent != SendNew {
		t.Fatalf("Sent = %q; want %q", result.Sent, SendNew)
	}
	if result.Escalated {
		t.Error("Escalated set without a late send")
	}

	stale := now.Add(-25 * time.Hour)
	task.LastSent = &stale
	result = d.Dispatch(context.Background(), task, types.DeltaUnchanged, now)
	if result.Sent != SendLate {
		t.Fatalf("Sent = %q; want %q", result.Sent, SendLate)
	}
	if result.Escalated {
		t.Error("Escalated set despite escalator failure")
	}
}
