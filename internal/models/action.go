package models

// MatchAction is one audited command against a match, queued for the
// historian and stored in match_actions.
type MatchAction struct {
	EventID   int64          `json:"event_id"`
	MatchID   int            `json:"match_id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}
