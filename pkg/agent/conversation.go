package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dotsetgreg/factkeeper/pkg/bus"
	"github.com/dotsetgreg/factkeeper/pkg/events"
	"github.com/dotsetgreg/factkeeper/pkg/facts"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
)

const (
	deleteSucceededReply = "🗑️ All your data has been deleted successfully!"
	deleteFailedReply    = "❌ Failed to delete data. Please try again."
)

// Options wires a Conversation. Facts and Sessions are required; the
// rest default to rule-only, template-only, no-event behavior.
type Options struct {
	Sessions    SessionStore
	Facts       FactStore
	Classifier  facts.Classifier
	Phraser     *Phraser
	Events      events.Publisher
	HistorySize int
}

// Conversation is the per-sender state machine:
// awaiting_name -> awaiting_name_reply -> conversing.
type Conversation struct {
	sessions    SessionStore
	facts       FactStore
	router      *facts.Router
	answerer    *facts.Answerer
	confirmer   *Confirmer
	phraser     *Phraser
	events      events.Publisher
	historySize int
}

func NewConversation(opts Options) *Conversation {
	if opts.Phraser == nil {
		opts.Phraser = NewPhraser(nil, "", 0)
	}
	if opts.Events == nil {
		opts.Events = events.Noop{}
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	return &Conversation{
		sessions:    opts.Sessions,
		facts:       opts.Facts,
		router:      facts.NewRouter(opts.Classifier),
		answerer:    facts.NewAnswerer(opts.Facts),
		confirmer:   NewConfirmer(opts.Facts, opts.Phraser, opts.Events),
		phraser:     opts.Phraser,
		events:      opts.Events,
		historySize: opts.HistorySize,
	}
}

// Handle runs one turn for the message's sender. Callers must not run
// two turns for the same sender concurrently.
func (c *Conversation) Handle(ctx context.Context, msg bus.InboundMessage) (Result, error) {
	key := msg.SenderKey()
	sess, found, err := c.sessions.Load(ctx, key)
	if err != nil {
		return NoAction(), fmt.Errorf("load session %s: %w", key, err)
	}
	if !found {
		sess = NewSession(key)
		logger.InfoCF("agent", "New sender", map[string]interface{}{
			"sender":  key,
			"channel": msg.Channel,
		})
	}
	if msg.DisplayName != "" {
		sess.DisplayName = msg.DisplayName
	}

	text := strings.TrimSpace(msg.Content)
	sess.Remember(text, c.historySize)
	before := sess.State

	var res Result
	switch sess.State {
	case StateAwaitingName:
		res = AskQuestion(c.phraser.NamePrompt(ctx))
		sess.State = StateAwaitingNameReply
	case StateAwaitingNameReply:
		res = c.handleNameReply(ctx, sess, text)
	default:
		sess.State = StateConversing
		res = c.handleConversing(ctx, sess, text)
	}

	if sess.Notice != "" {
		if res.Sends() {
			res.Text = sess.Notice + "\n\n" + res.Text
		} else {
			res = Reply(sess.Notice)
		}
		sess.Notice = ""
	}

	sess.UpdatedAt = time.Now().UTC()
	if err := c.sessions.Save(ctx, sess); err != nil {
		return res, fmt.Errorf("save session %s: %w", key, err)
	}

	if before != sess.State {
		logger.DebugCF("agent", "Session state changed", map[string]interface{}{
			"sender": key,
			"from":   string(before),
			"to":     string(sess.State),
		})
	}
	return res, nil
}

func (c *Conversation) handleNameReply(ctx context.Context, sess *Session, text string) Result {
	if sess.Pending != nil {
		conf, res := c.confirmer.Resolve(ctx, sess, text)
		if conf == ConfirmYes {
			sess.State = StateConversing
		}
		return res
	}

	name := c.extractName(ctx, text)
	if name == "" {
		return AskQuestion(c.phraser.NamePrompt(ctx))
	}
	ext := facts.Extraction{
		DataType: facts.TypeName,
		Subject:  facts.SelfSubject,
		Content:  name,
		Keywords: []string{"name", strings.ToLower(name)},
	}

	metaContext := facts.ContextNameCollection
	if _, exists := c.facts.MostRecent(ctx, sess.SenderKey, facts.TypeName, ""); exists {
		metaContext = facts.ContextNameUpdate
	}

	outcome, res := c.confirmer.Propose(ctx, sess, ext, metaContext)
	switch outcome {
	case OutcomePending, OutcomeAbandoned:
		return res
	default:
		sess.State = StateConversing
		return Reply(c.phraser.Greeting(ctx, name, text, sess.Recent))
	}
}

// extractName takes the classifier's name when it finds one and the
// whole reply otherwise, since a bare "Neha" carries no name cue.
func (c *Conversation) extractName(ctx context.Context, text string) string {
	ext := c.router.Classifier().Classify(ctx, text)
	name := text
	if ext.DataType == facts.TypeName && ext.Content != "name mentioned" {
		name = ext.Content
	}
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(name), ".!?"))
}

func (c *Conversation) handleConversing(ctx context.Context, sess *Session, text string) Result {
	if sess.Pending != nil {
		_, res := c.confirmer.Resolve(ctx, sess, text)
		return res
	}

	intent := c.router.Route(ctx, text)
	switch intent.Kind {
	case facts.IntentCommand:
		return c.deleteAll(ctx, sess)
	case facts.IntentGreeting:
		return Reply(c.phraser.Greeting(ctx, c.nameFor(ctx, sess), text, sess.Recent))
	case facts.IntentQuestion:
		return Reply(c.answerer.Answer(ctx, sess.SenderKey, text))
	case facts.IntentStatement:
		_, res := c.confirmer.Propose(ctx, sess, intent.Extraction, facts.ContextPersonalInfo)
		return res
	default:
		return NoAction()
	}
}

func (c *Conversation) deleteAll(ctx context.Context, sess *Session) Result {
	if err := c.facts.DeleteAll(ctx, sess.SenderKey); err != nil {
		logger.ErrorCF("agent", "Delete all data failed", map[string]interface{}{
			"sender": sess.SenderKey,
			"error":  err.Error(),
		})
		return Reply(deleteFailedReply)
	}
	c.confirmer.publish(ctx, events.NewDeleteEvent(sess.SenderKey))
	logger.InfoCF("agent", "Deleted all data for sender", map[string]interface{}{
		"sender": sess.SenderKey,
	})
	return Reply(deleteSucceededReply)
}

// nameFor prefers the stored self name over the transport display name.
func (c *Conversation) nameFor(ctx context.Context, sess *Session) string {
	if f, ok := c.facts.MostRecent(ctx, sess.SenderKey, facts.TypeName, ""); ok {
		return facts.CleanContent(facts.TypeName, f.Content)
	}
	return sess.DisplayName
}

// DeliveryFailed keeps text on the session so the next reply to the
// sender carries it.
func (c *Conversation) DeliveryFailed(ctx context.Context, senderKey, text string) error {
	sess, found, err := c.sessions.Load(ctx, senderKey)
	if err != nil {
		return fmt.Errorf("load session %s: %w", senderKey, err)
	}
	if !found {
		sess = NewSession(senderKey)
	}
	sess.Notice = text
	return c.sessions.Save(ctx, sess)
}

// Session exposes the stored session for a sender, mainly for the CLI and tests.
func (c *Conversation) Session(ctx context.Context, senderKey string) (*Session, bool, error) {
	return c.sessions.Load(ctx, senderKey)
}
