package types

// Event is the structured payload attached to every emitted state change.
// Attributes are flat string pairs so downstream consumers can index them
// without schema knowledge.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
