// Package notify is the fire-and-forget notification sink. Delivery
// failures are logged and never propagate into settlement.
package notify

import (
	"context"
	"log/slog"
	"sync"

	pubnub "github.com/pubnub/go"
)

// Notifier publishes domain events. Implementations must never block the
// caller on delivery problems.
type Notifier interface {
	Notify(ctx context.Context, kind string, payload map[string]any)
	NotifyUser(ctx context.Context, userID, kind string, payload map[string]any)
}

// PubNub publishes to the shared market channel and per-user channels.
type PubNub struct {
	pn *pubnub.PubNub
}

func NewPubNub(pn *pubnub.PubNub) *PubNub {
	return &PubNub{pn: pn}
}

const marketChannel = "market-events"

func (n *PubNub) Notify(_ context.Context, kind string, payload map[string]any) {
	n.publish(marketChannel, kind, payload)
}

func (n *PubNub) NotifyUser(_ context.Context, userID, kind string, payload map[string]any) {
	n.publish("user-"+userID, kind, payload)
}

func (n *PubNub) publish(channel, kind string, payload map[string]any) {
	message := map[string]any{"type": kind}
	for k, v := range payload {
		message[k] = v
	}

	_, pnStatus, err := n.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		slog.Error("notify: publish failed", "channel", channel, "kind", kind, "error", err)
		return
	}
	if pnStatus.Error != nil {
		slog.Error("notify: publish rejected", "channel", channel, "kind", kind, "status", pnStatus.StatusCode, "error", pnStatus.Error)
	}
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string, map[string]any)             {}
func (Nop) NotifyUser(context.Context, string, string, map[string]any) {}

// Recorded is one captured notification.
type Recorded struct {
	UserID  string
	Kind    string
	Payload map[string]any
}

// Recorder captures notifications for test assertions.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(_ context.Context, kind string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Kind: kind, Payload: payload})
}

func (r *Recorder) NotifyUser(_ context.Context, userID, kind string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{UserID: userID, Kind: kind, Payload: payload})
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}
