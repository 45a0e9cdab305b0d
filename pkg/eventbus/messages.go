package eventbus

// Message describes one lifecycle fact or command to publish.
type Message struct {
	Kind         Kind
	Verb         string
	Event        string
	GenerationID string
	Data         any
}

// Generation lifecycle messages.
var (
	GenerationSubmitted = Message{Kind: KindEvent, Verb: "submitted", Event: "generation.submitted"}
	GenerationProgress  = Message{Kind: KindEvent, Verb: "in_progress", Event: "generation.in_progress"}
	GenerationFailed    = Message{Kind: KindEvent, Verb: "failed", Event: "generation.failed"}
	PostProcessCommand  = Message{Kind: KindCommand, Verb: "post_process", Event: "generation.post_process_requested"}
)

// With returns a copy of m bound to a generation and its data.
func (m Message) With(generationID string, data any) Message {
	m.GenerationID = generationID
	m.Data = data
	return m
}

// KnownMessages lists every message template this service may publish.
func KnownMessages() []Message {
	return []Message{GenerationSubmitted, GenerationProgress, GenerationFailed, PostProcessCommand}
}

// KnownTopics resolves the topics for KnownMessages.
func KnownTopics(environment, domain string) []string {
	msgs := KnownMessages()
	topics := make([]string, 0, len(msgs))
	for _, m := range msgs {
		topics = append(topics, Topic(environment, domain, m.Kind, m.Verb))
	}
	return topics
}
