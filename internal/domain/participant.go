// Package domain contains entity without logic, just meta-data
package domain

type ParticipantID string

// Participant is one entry of the provider's snapshot. The whole set is
// replaced on every event, never patched in place.
type Participant struct {
	ID           ParticipantID `json:"id"`
	DisplayName  string        `json:"display_name"`
	AudioEnabled bool          `json:"audio_enabled"`
	VideoEnabled bool          `json:"video_enabled"`
	IsLocal      bool          `json:"is_local"`
	IsHost       bool          `json:"is_host"`
}
