package agent

// ResultKind tags what a handled message produced.
type ResultKind int

const (
	// ResultNoAction means nothing is sent back.
	ResultNoAction ResultKind = iota
	// ResultReply is a plain reply.
	ResultReply
	// ResultAskQuestion is a reply that expects an answer on the next turn
	// (name prompt, confirmation prompt, re-prompt).
	ResultAskQuestion
)

func (k ResultKind) String() string {
	switch k {
	case ResultReply:
		return "reply"
	case ResultAskQuestion:
		return "ask_question"
	default:
		return "no_action"
	}
}

// Result is the outcome of one turn.
type Result struct {
	Kind ResultKind
	Text string
}

func Reply(text string) Result       { return Result{Kind: ResultReply, Text: text} }
func AskQuestion(text string) Result { return Result{Kind: ResultAskQuestion, Text: text} }
func NoAction() Result               { return Result{Kind: ResultNoAction} }

// Sends reports whether the result carries text for the sender.
func (r Result) Sends() bool {
	return r.Kind != ResultNoAction && r.Text != ""
}
