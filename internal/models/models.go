package models

// Event names emitted toward the data layer.
const (
	EventFormStart        = "form_start"
	EventFieldInteraction = "form_field_interaction"
	EventFormSubmit       = "form_submit"
)

// Record is a single data layer entry. Keys follow the analytics wire contract:
// event, path, timestamp, plus field/value/count or data depending on the event.
type Record map[string]any

func (r Record) Name() string      { return r.str("event") }
func (r Record) Path() string      { return r.str("path") }
func (r Record) Timestamp() string { return r.str("timestamp") }

func (r Record) str(key string) string {
	s, _ := r[key].(string)
	return s
}

// Session is the result of a replay stored by the agent.
type Session struct {
	SessionID string   `json:"session_id"`
	Events    []Record `json:"events"`
}
