// Package gateway delivers outbound messages to a chat bot API and
// classifies its failures
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Action is an interactive button attached to a message. Callback is
// the opaque payload the chat platform echoes back when the recipient
// taps it.
type Action struct {
	Label    string `json:"label"`
	Callback string `json:"callback"`
}

// Gateway sends messages to a channel address. Implementations must
// return a DeliveryError for failures the caller is expected to report
// rather than retry.
type Gateway interface {
	Send(ctx context.Context, channel, text string) (string, error)
	SendWithAction(ctx context.Context, channel, text string, action Action) (string, error)
}

// FailureKind is the small taxonomy delivery failures collapse into
type FailureKind string

const (
	KindBlocked     FailureKind = "blocked"      // recipient blocked the bot
	KindNotStarted  FailureKind = "not_started"  // recipient never initiated a chat
	KindNotFound    FailureKind = "not_found"    // channel address does not exist
	KindRateLimited FailureKind = "rate_limited" // provider throttled the send
	KindMalformed   FailureKind = "malformed"    // our request was rejected
	KindUnknown     FailureKind = "unknown"
)

// DeliveryError is a classified failure to deliver one message
type DeliveryError struct {
	Kind    FailureKind
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed (%s): %v", e.Channel, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// AsDelivery extracts a DeliveryError from an error chain
func AsDelivery(err error) (*DeliveryError, bool) {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// classifyResponse maps a bot API status code and description onto the
// failure taxonomy
func classifyResponse(status int, description string) FailureKind {
	desc := strings.ToLower(description)
	switch {
	case status == 429:
		return KindRateLimited
	case status == 403 && strings.Contains(desc, "blocked"):
		return KindBlocked
	case status == 403 && strings.Contains(desc, "can't initiate"),
		strings.Contains(desc, "not started"):
		return KindNotStarted
	case status == 400 && strings.Contains(desc, "chat not found"),
		status == 404:
		return KindNotFound
	case status == 400:
		return KindMalformed
	default:
		return KindUnknown
	}
}
