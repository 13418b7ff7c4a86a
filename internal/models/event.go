package models

import "time"

// Event is the currently running tournament. At most one runs at a time.
type Event struct {
	ID          int64     `json:"eventId"`
	Season      int       `json:"season"`
	Name        string    `json:"eventName"`
	Date        time.Time `json:"eventDate"`
	IsFinals    bool      `json:"isFinals"`
	Round       int       `json:"round"`
	Running     bool      `json:"running"`
	WarningSent bool      `json:"warningSent"`
}

// PlayerScore is one row of a recorded result.
type PlayerScore struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// Placement is a final finishing position in a Finals event.
type Placement struct {
	ID    string `json:"id"`
	Place int    `json:"place"`
}
