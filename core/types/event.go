package types

// Event is a typed notification emitted by a state transition for off-chain
// observers. Attributes carry the payload as flat string pairs so downstream
// indexers do not need schema knowledge to store them.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
