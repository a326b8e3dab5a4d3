package widget

import (
	"github.com/dkeye/meetd/internal/core"
	"github.com/dkeye/meetd/internal/domain"
)

// Commands sent to the widget host.
const (
	cmdCreateInstance    = "create-instance"
	cmdJoin              = "join"
	cmdLeave             = "leave"
	cmdDestroy           = "destroy"
	cmdSetContainer      = "set-container"
	cmdRemoveParticipant = "remove-participant"
	cmdUpdateParticipant = "update-participant"
)

// Host message kinds besides the participant events of core.
const msgResult = "result"

// command is the single envelope for every daemon-to-host message; unused
// fields are omitted per command kind.
type command struct {
	Type        string            `json:"type"`
	ID          string            `json:"id,omitempty"`
	Container   string            `json:"container,omitempty"`
	URL         string            `json:"url,omitempty"`
	UserName    string            `json:"user_name,omitempty"`
	Participant string            `json:"participant,omitempty"`
	SetAudio    *bool             `json:"set_audio,omitempty"`
	IFrameStyle map[string]string `json:"iframe_style,omitempty"`
}

// hostMessage is what the widget host sends back: command results keyed by
// correlation id, and participant events carrying full snapshots.
type hostMessage struct {
	Type         string            `json:"type"`
	ID           string            `json:"id,omitempty"`
	Error        string            `json:"error,omitempty"`
	Participants []wireParticipant `json:"participants,omitempty"`
}

// wireParticipant is the provider's participant record as delivered by the
// widget.
type wireParticipant struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Audio    bool   `json:"audio"`
	Video    bool   `json:"video"`
	Local    bool   `json:"local"`
	Owner    bool   `json:"owner"`
}

func (w wireParticipant) toDomain() domain.Participant {
	return domain.Participant{
		ID:           domain.ParticipantID(w.UserID),
		DisplayName:  w.UserName,
		AudioEnabled: w.Audio,
		VideoEnabled: w.Video,
		IsLocal:      w.Local,
		IsHost:       w.Owner,
	}
}

func toSnapshot(ps []wireParticipant) []domain.Participant {
	out := make([]domain.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.toDomain())
	}
	return out
}

func isParticipantEvent(kind string) bool {
	switch kind {
	case core.EventParticipantJoined, core.EventParticipantUpdated, core.EventParticipantLeft:
		return true
	default:
		return false
	}
}
