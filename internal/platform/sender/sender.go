// Package sender defines the outbound notification channel contract and the
// concrete senders the delivery recorder dispatches through. A Registry maps
// each channel (EMAIL, SMS, PUSH) to a Sender implementation; the channel set
// is closed and anything outside it fails with ErrUnsupportedChannel.
package sender

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Channel is the notification medium a reminder is delivered through.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
)

// Valid reports whether c is one of the closed channel set.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// ParseChannel validates a raw channel value coming from an API boundary.
func ParseChannel(raw string) (Channel, error) {
	c := Channel(raw)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChannel, raw)
	}
	return c, nil
}

// ErrUnsupportedChannel is returned when no sender is registered for a channel
// or a channel value falls outside the closed set.
var ErrUnsupportedChannel = errors.New("unsupported channel")

// Message is a rendered outbound notification. Subject is ignored by senders
// whose medium has no subject line (SMS, push).
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Sender delivers a message through one provider and returns the provider's
// message identifier.
type Sender interface {
	Send(ctx context.Context, msg Message) (providerMessageID string, err error)
}

// Registry holds one Sender per channel.
type Registry struct {
	mu      sync.RWMutex
	senders map[Channel]Sender
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[Channel]Sender)}
}

// Register adds or replaces the sender for a channel.
func (r *Registry) Register(ch Channel, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[ch] = s
}

// Send routes a message to the sender registered for ch.
func (r *Registry) Send(ctx context.Context, ch Channel, msg Message) (string, error) {
	r.mu.RLock()
	s, ok := r.senders[ch]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedChannel, ch)
	}
	return s.Send(ctx, msg)
}

// ConsoleSender logs the message instead of calling a real provider. It is the
// default sender in development and in the worker when no provider is
// configured.
type ConsoleSender struct {
	Channel Channel
	Logger  zerolog.Logger
}

// Send logs the message and returns a generated provider message id.
func (s *ConsoleSender) Send(_ context.Context, msg Message) (string, error) {
	id := uuid.New().String()
	s.Logger.Info().
		Str("channel", string(s.Channel)).
		Str("recipient", msg.Recipient).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Str("provider_message_id", id).
		Msg("console send")
	return id, nil
}
