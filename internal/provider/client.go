// Package provider is the typed wrapper over the remote control-plane API.
// It holds no state and never retries; callers decide retry policy.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/core"
	"github.com/dkeye/meetd/internal/domain"
)

// ProviderError is a non-2xx answer from the control plane.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("control plane %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Room properties are fixed configuration of this deployment, not
// per-call parameters.
type roomProperties struct {
	EnableChat    bool `json:"enable_chat"`
	EnableKnock   bool `json:"enable_knocking"`
	StartVideoOff bool `json:"start_video_off"`
	StartAudioOff bool `json:"start_audio_off"`
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

type roomPayload struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (p roomPayload) toDomain() domain.Room {
	return domain.Room{
		URL:       domain.RoomURL(p.URL),
		Name:      domain.RoomName(p.Name),
		CreatedAt: p.CreatedAt,
	}
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ core.ControlPlane = (*Client)(nil)

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var resp struct {
		Data []roomPayload `json:"data"`
	}
	if err := c.do(ctx, "list", http.MethodGet, "/rooms", nil, &resp); err != nil {
		return nil, err
	}
	rooms := make([]domain.Room, 0, len(resp.Data))
	for _, p := range resp.Data {
		rooms = append(rooms, p.toDomain())
	}
	return rooms, nil
}

func (c *Client) CreateRoom(ctx context.Context, namePrefix string) (domain.Room, error) {
	req := createRoomRequest{
		Name:    roomName(namePrefix),
		Privacy: "private",
		Properties: roomProperties{
			EnableChat:  true,
			EnableKnock: true,
			// Media defaults on: participants enter unmuted with video.
			StartVideoOff: false,
			StartAudioOff: false,
		},
	}
	var resp roomPayload
	if err := c.do(ctx, "create", http.MethodPost, "/rooms", req, &resp); err != nil {
		return domain.Room{}, err
	}
	log.Info().Str("module", "provider").Str("room", resp.Name).Msg("room created")
	return resp.toDomain(), nil
}

func (c *Client) DeleteRoom(ctx context.Context, name domain.RoomName) error {
	if err := c.do(ctx, "delete", http.MethodDelete, "/rooms/"+string(name), nil, nil); err != nil {
		return err
	}
	log.Info().Str("module", "provider").Str("room", string(name)).Msg("room deleted")
	return nil
}

// roomName appends a random suffix so two creates never collide on the
// provider side.
func roomName(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%s", prefix, suffix)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("control plane %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
