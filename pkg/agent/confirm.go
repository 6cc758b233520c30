package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dotsetgreg/factkeeper/pkg/events"
	"github.com/dotsetgreg/factkeeper/pkg/facts"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
)

// FactStore is what the conversation core needs from fact storage.
type FactStore interface {
	facts.Reader
	Put(ctx context.Context, f facts.Fact) facts.Fact
	Overwrite(ctx context.Context, current facts.Fact, content string, meta facts.Metadata) facts.Fact
	DeleteAll(ctx context.Context, subjectKey string) error
}

// Confirmation classifies a reply to a pending update.
type Confirmation int

const (
	ConfirmUnclear Confirmation = iota
	ConfirmYes
	ConfirmNo
)

var (
	yesWords = map[string]struct{}{"yes": {}, "y": {}, "yeah": {}, "sure": {}, "ok": {}, "okay": {}}
	noWords  = map[string]struct{}{"no": {}, "n": {}, "nope": {}, "nah": {}}
)

// ParseConfirmation matches the whole reply against the yes and no
// lexicons, ignoring case, surrounding space and trailing punctuation.
func ParseConfirmation(text string) Confirmation {
	word := strings.TrimRight(strings.ToLower(strings.TrimSpace(text)), ".!")
	if _, ok := yesWords[word]; ok {
		return ConfirmYes
	}
	if _, ok := noWords[word]; ok {
		return ConfirmNo
	}
	return ConfirmUnclear
}

// Outcome reports what Propose did with a new fact.
type Outcome int

const (
	// OutcomeStored: no prior value, the fact was written.
	OutcomeStored Outcome = iota
	// OutcomeUnchanged: the series already holds the same value; nothing was written.
	OutcomeUnchanged
	// OutcomePending: a different value exists; a pending update awaits yes/no.
	OutcomePending
	// OutcomeAbandoned: the context ended before a pending update was recorded.
	OutcomeAbandoned
)

// Confirmer decides between writing a fact directly and asking before
// replacing an existing value.
type Confirmer struct {
	store   FactStore
	phraser *Phraser
	events  events.Publisher
	now     func() time.Time
}

func NewConfirmer(store FactStore, phraser *Phraser, publisher events.Publisher) *Confirmer {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Confirmer{store: store, phraser: phraser, events: publisher, now: time.Now}
}

// Propose checks the fact's series for sess's sender. The session is
// only mutated once the confirmation prompt exists, so an abandoned
// call never leaves a half-built pending update.
func (c *Confirmer) Propose(ctx context.Context, sess *Session, ext facts.Extraction, metaContext string) (Outcome, Result) {
	person := ""
	if !ext.IsSelf() {
		person = ext.Person
		if person == "" {
			person = ext.Subject
		}
	}

	existing, found := c.store.MostRecent(ctx, sess.SenderKey, ext.DataType, person)
	if !found {
		ack := facts.Acknowledge(ext)
		f := c.store.Put(ctx, facts.FromExtraction(sess.SenderKey, ext, facts.Metadata{
			Source:   facts.SourceUserInput,
			Context:  metaContext,
			Response: ack,
		}))
		c.publish(ctx, events.NewFactEvent(events.KindFactCommitted, f))
		return OutcomeStored, Reply(ack)
	}

	current := facts.CleanContent(existing.DataType, existing.Content)
	if facts.SameContent(current, facts.CleanContent(ext.DataType, ext.Content)) {
		return OutcomeUnchanged, Reply(alreadyKnown(ext, current))
	}

	prompt := c.phraser.ConfirmPrompt(ctx, facts.Subjective(ext), current, ext.Content)
	if err := ctx.Err(); err != nil {
		return OutcomeAbandoned, NoAction()
	}
	sess.Pending = &PendingUpdate{
		Existing:  existing,
		Proposed:  ext,
		Context:   metaContext,
		CreatedAt: c.now().UTC(),
	}
	return OutcomePending, AskQuestion(prompt)
}

// Resolve applies a yes/no reply to sess.Pending. Unclear replies keep
// the pending update and re-prompt.
func (c *Confirmer) Resolve(ctx context.Context, sess *Session, text string) (Confirmation, Result) {
	p := sess.Pending
	if p == nil {
		return ConfirmUnclear, NoAction()
	}
	nameFlow := p.Context == facts.ContextNameUpdate

	switch ParseConfirmation(text) {
	case ConfirmYes:
		updated := c.store.Overwrite(ctx, p.Existing, p.Proposed.Content, facts.Metadata{
			Source:    facts.SourceUserInput,
			Context:   contextForUpdate(p.Context),
			Confirmed: true,
		})
		sess.Pending = nil
		c.publish(ctx, events.NewFactEvent(events.KindFactUpdated, updated))
		if nameFlow {
			return ConfirmYes, Reply(fmt.Sprintf("✅ Updated! Your name has been changed to %s.", p.Proposed.Content))
		}
		return ConfirmYes, Reply(fmt.Sprintf("✅ Updated! %s has been changed.", capitalSubject(p)))

	case ConfirmNo:
		sess.Pending = nil
		if nameFlow {
			return ConfirmNo, AskQuestion("👍 No problem! Please tell me your name.")
		}
		return ConfirmNo, Reply(fmt.Sprintf("👍 No problem! I'll keep %s as is.", currentSubject(p)))

	default:
		if nameFlow {
			return ConfirmUnclear, AskQuestion(`Please reply with "yes" to update your name or "no" to keep your current name.`)
		}
		return ConfirmUnclear, AskQuestion(fmt.Sprintf(`Please reply with "yes" to update or "no" to keep %s.`, currentSubject(p)))
	}
}

func (c *Confirmer) publish(ctx context.Context, ev events.Event) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.events.Publish(cctx, ev); err != nil {
		logger.WarnCF("agent", "Fact event not published", map[string]interface{}{
			"kind":   string(ev.Kind),
			"sender": ev.SubjectKey,
			"error":  err.Error(),
		})
	}
}

func contextForUpdate(metaContext string) string {
	if metaContext == facts.ContextNameUpdate {
		return facts.ContextNameUpdate
	}
	return facts.ContextDataUpdate
}

// capitalSubject renders "Your birthday" or "Adam's birthday".
func capitalSubject(p *PendingUpdate) string {
	if p.Proposed.IsSelf() {
		return "Your " + p.Proposed.DataType.Label()
	}
	return p.Subjective()
}

// currentSubject renders "your current birthday" or "Adam's current birthday".
func currentSubject(p *PendingUpdate) string {
	if p.Proposed.IsSelf() {
		return "your current " + p.Proposed.DataType.Label()
	}
	return strings.Replace(p.Subjective(), "'s ", "'s current ", 1)
}

func alreadyKnown(ext facts.Extraction, current string) string {
	if ext.IsSelf() {
		return fmt.Sprintf("I already know that, your %s is %s.", ext.DataType.Label(), current)
	}
	return fmt.Sprintf("I already know that, %s is %s.", facts.Subjective(ext), current)
}
