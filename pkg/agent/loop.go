// FactKeeper - chat-driven personal data assistant
// License: MIT
//
// Copyright (c) 2026 FactKeeper contributors

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dotsetgreg/factkeeper/pkg/bus"
	"github.com/dotsetgreg/factkeeper/pkg/config"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
)

// ErrDeliveryFailed wraps transport errors for a reply that could not be sent.
var ErrDeliveryFailed = errors.New("reply delivery failed")

type AgentLoop struct {
	bus           *bus.MessageBus
	conversation  *Conversation
	handleTimeout time.Duration
	running       atomic.Bool
	queues        *senderQueues
	processed     atomic.Uint64
	failed        atomic.Uint64
}

func NewAgentLoop(cfg *config.Config, msgBus *bus.MessageBus, conversation *Conversation) *AgentLoop {
	workers := cfg.Agent.Workers
	if workers <= 0 {
		workers = 8
	}
	al := &AgentLoop{
		bus:           msgBus,
		conversation:  conversation,
		handleTimeout: cfg.HandleTimeout(),
	}
	al.queues = newSenderQueues(workers, al.processMessage)
	return al
}

// Run consumes inbound messages until ctx ends or Stop is called. Each
// sender's messages are handled strictly in arrival order; different
// senders proceed concurrently.
func (al *AgentLoop) Run(ctx context.Context) error {
	al.running.Store(true)
	defer al.queues.wait()

	for al.running.Load() {
		msg, ok := al.bus.ConsumeInbound(ctx)
		if !ok {
			// Context done or bus closed.
			return nil
		}
		al.queues.enqueue(ctx, msg)
	}
	return nil
}

func (al *AgentLoop) Stop() {
	al.running.Store(false)
}

func (al *AgentLoop) IsRunning() bool {
	return al.running.Load()
}

// ProcessDirect runs one turn without the bus, for the CLI chat mode.
func (al *AgentLoop) ProcessDirect(ctx context.Context, content, senderID string) (string, error) {
	msg := bus.InboundMessage{
		Channel:  "cli",
		SenderID: senderID,
		ChatID:   "direct",
		Content:  content,
	}
	ctx, cancel := context.WithTimeout(ctx, al.handleTimeout)
	defer cancel()

	res, err := al.conversation.Handle(ctx, msg)
	if err != nil {
		return "", err
	}
	if !res.Sends() {
		return "", nil
	}
	return res.Text, nil
}

func (al *AgentLoop) processMessage(ctx context.Context, msg bus.InboundMessage) error {
	logger.InfoCF("agent", "Processing message", map[string]interface{}{
		"channel":   msg.Channel,
		"chat_id":   msg.ChatID,
		"sender_id": msg.SenderID,
		"preview":   truncate(msg.Content, 80),
	})

	ctx, cancel := context.WithTimeout(ctx, al.handleTimeout)
	defer cancel()

	res, err := al.conversation.Handle(ctx, msg)
	al.processed.Add(1)
	if err != nil {
		al.failed.Add(1)
		logger.ErrorCF("agent", "Handling message failed", map[string]interface{}{
			"sender": msg.SenderKey(),
			"error":  err.Error(),
		})
		return err
	}
	if !res.Sends() {
		return nil
	}

	err = al.bus.Deliver(ctx, bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: res.Text,
	})
	if err == nil {
		return nil
	}

	al.failed.Add(1)
	logger.WarnCF("agent", "Reply not delivered, carrying it to the next turn", map[string]interface{}{
		"sender": msg.SenderKey(),
		"kind":   res.Kind.String(),
		"error":  err.Error(),
	})
	nctx, ncancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ncancel()
	if nerr := al.conversation.DeliveryFailed(nctx, msg.SenderKey(), res.Text); nerr != nil {
		logger.ErrorCF("agent", "Could not keep undelivered reply", map[string]interface{}{
			"sender": msg.SenderKey(),
			"error":  nerr.Error(),
		})
	}
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
}

func (al *AgentLoop) GetStartupInfo() map[string]interface{} {
	return map[string]interface{}{
		"running":        al.running.Load(),
		"workers":        al.queues.workers,
		"handle_timeout": al.handleTimeout.String(),
		"processed":      al.processed.Load(),
		"failed":         al.failed.Load(),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// senderQueues runs one drain goroutine per active sender. A shared
// semaphore bounds how many turns run at once.
type senderQueues struct {
	mu      sync.Mutex
	pending map[string][]bus.InboundMessage
	sem     chan struct{}
	workers int
	handle  func(context.Context, bus.InboundMessage) error
	wg      sync.WaitGroup
}

func newSenderQueues(workers int, handle func(context.Context, bus.InboundMessage) error) *senderQueues {
	return &senderQueues{
		pending: make(map[string][]bus.InboundMessage),
		sem:     make(chan struct{}, workers),
		workers: workers,
		handle:  handle,
	}
}

func (q *senderQueues) enqueue(ctx context.Context, msg bus.InboundMessage) {
	key := msg.SenderKey()

	q.mu.Lock()
	backlog, active := q.pending[key]
	q.pending[key] = append(backlog, msg)
	q.mu.Unlock()

	if active {
		return
	}
	q.wg.Add(1)
	go q.drain(ctx, key)
}

func (q *senderQueues) drain(ctx context.Context, key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		backlog := q.pending[key]
		if len(backlog) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		msg := backlog[0]
		q.pending[key] = backlog[1:]
		q.mu.Unlock()

		select {
		case q.sem <- struct{}{}:
		case <-ctx.Done():
			q.mu.Lock()
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		_ = q.handle(ctx, msg)
		<-q.sem
	}
}

func (q *senderQueues) wait() {
	q.wg.Wait()
}
