package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/alatoul/ride-hailing/pkg/logger"
	"go.uber.org/zap"
)

// LocalBus delivers events to in-process subscribers. It stands in for NATS
// when a service runs without a broker, so a single binary can publish and
// consume its own events.
type LocalBus struct {
	mu   sync.RWMutex
	subs []localSub
}

type localSub struct {
	pattern  string
	consumer string
	ctx      context.Context
	handler  HandlerFunc
}

// NewLocalBus creates an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

// Publish hands the event to every subscriber whose pattern matches subject.
// Handlers run on the caller's goroutine. A failing handler is logged and does
// not affect the other subscribers.
func (b *LocalBus) Publish(ctx context.Context, subject string, event *Event) error {
	// Round-trip through JSON so subscribers see exactly what NATS would carry.
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	b.mu.RLock()
	subs := make([]localSub, 0, len(b.subs))
	for _, s := range b.subs {
		if SubjectMatches(s.pattern, subject) {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if s.ctx.Err() != nil {
			continue
		}
		var copyEvent Event
		if err := json.Unmarshal(data, &copyEvent); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}
		if err := s.handler(s.ctx, &copyEvent); err != nil {
			logger.Warn("local event handler failed",
				zap.String("consumer", s.consumer),
				zap.String("subject", subject),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Subscribe registers handler for subject, which may use NATS wildcards.
// The subscription ends when ctx is cancelled.
func (b *LocalBus) Subscribe(ctx context.Context, subject, consumerName string, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("subscribe %s: nil handler", consumerName)
	}
	b.mu.Lock()
	b.subs = append(b.subs, localSub{pattern: subject, consumer: consumerName, ctx: ctx, handler: handler})
	b.mu.Unlock()

	logger.Info("subscribed to local events",
		zap.String("subject", subject),
		zap.String("consumer", consumerName),
	)
	return nil
}

// SubjectMatches reports whether subject matches a NATS subject pattern.
// "*" matches exactly one token and a trailing ">" matches one or more.
func SubjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, p := range pt {
		if p == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
