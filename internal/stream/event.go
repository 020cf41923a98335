package stream

// EventType discriminates the uniform output stream of a query.
type EventType string

const (
	EventText     EventType = "text"
	EventThinking EventType = "thinking"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Event is a single unit of the output stream. Content carries the delta for
// text and thinking events; Error carries the message of an error event.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Text returns a text delta event.
func Text(s string) Event { return Event{Type: EventText, Content: s} }

// Thinking returns a reasoning delta event.
func Thinking(s string) Event { return Event{Type: EventThinking, Content: s} }

// Error returns a terminal error event.
func Error(msg string) Event { return Event{Type: EventError, Error: msg} }

// Done returns the terminal done event.
func Done() Event { return Event{Type: EventDone} }

// Terminal reports whether no further events may follow e.
func (e Event) Terminal() bool {
	return e.Type == EventError || e.Type == EventDone
}
