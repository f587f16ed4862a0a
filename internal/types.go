package internal

import "time"

// RunRequest identifies one invocation of the refinement loop.
type RunRequest struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	Language  string    `json:"language,omitempty"`
	Settings  string    `json:"settings"`
	Timestamp time.Time `json:"timestamp"`
}
