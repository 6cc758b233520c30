package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/dotsetgreg/factkeeper/pkg/bus"
)

// Channel is a messaging transport. Send must return the transport error
// so the agent loop can tell the sender's next turn about it.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

type BaseChannel struct {
	bus       *bus.MessageBus
	running   atomic.Bool
	name      string
	allowList []string
}

func NewBaseChannel(name string, bus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		bus:       bus,
		name:      name,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

// IsAllowed accepts everyone when the allow list is empty. Entries may
// carry a leading "@" or "+".
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	for _, allowed := range c.allowList {
		candidate := strings.TrimSpace(strings.TrimLeft(allowed, "@+"))
		if candidate != "" && candidate == senderID {
			return true
		}
	}
	return false
}

// HandleMessage publishes one inbound utterance. It reports false when
// the sender is filtered out.
func (c *BaseChannel) HandleMessage(senderID, chatID, displayName, content string, metadata map[string]string) bool {
	if !c.IsAllowed(senderID) {
		return false
	}
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:     c.name,
		SenderID:    senderID,
		ChatID:      chatID,
		DisplayName: displayName,
		Content:     content,
		Metadata:    metadata,
	})
	return true
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}
