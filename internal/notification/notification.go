package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindTopUp indicates a credited top-up.
	KindTopUp = "top_up"
	// KindPeerReceived is sent to the recipient of a peer transfer.
	KindPeerReceived = "peer_received"
	// KindContribution is sent to the contributor once the campaign is funded.
	KindContribution = "contribution"
	// KindPayout is sent to a beneficiary after a disbursement.
	KindPayout = "payout"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Recorder keeps every message in memory. Tests use it to assert on deliveries.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, is returned from every Send after recording.
	Err error
}

// Send records the message.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return r.Err
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
