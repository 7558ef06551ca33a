package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/livekit/protocol/livekit"
)

// Signal is the room-metadata payload used as a one-way channel from the
// server to the in-room agent. Bumped revisions tell the agent what to
// re-read; the values are millisecond timestamps.
type Signal struct {
	VoiceConfigRev int64 `json:"voice_config_rev,omitempty"`
	DocumentsRev   int64 `json:"documents_rev,omitempty"`
}

// DecodeSignal parses room metadata, tolerating empty or foreign content.
func DecodeSignal(metadata string) Signal {
	var s Signal
	if metadata == "" {
		return s
	}
	_ = json.Unmarshal([]byte(metadata), &s)
	return s
}

func (s Signal) encode() string {
	buf, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(buf)
}

// PokeVoiceConfig bumps the voice-config revision on a room so the agent
// re-reads the stored settings.
func (c *Client) PokeVoiceConfig(ctx context.Context, roomName string) error {
	return c.poke(ctx, roomName, func(s *Signal) {
		s.VoiceConfigRev = time.Now().UnixMilli()
	})
}

// PokeDocuments bumps the documents revision after an upload lands.
func (c *Client) PokeDocuments(ctx context.Context, roomName string) error {
	return c.poke(ctx, roomName, func(s *Signal) {
		s.DocumentsRev = time.Now().UnixMilli()
	})
}

// RoomMetadata returns the current metadata blob of a room, or "" when the
// room does not exist.
func (c *Client) RoomMetadata(ctx context.Context, roomName string) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := c.svc.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{roomName}})
	if err != nil {
		return "", fmt.Errorf("room metadata %s: %w", roomName, err)
	}
	if len(resp.Rooms) == 0 {
		return "", nil
	}
	return resp.Rooms[0].Metadata, nil
}

func (c *Client) poke(ctx context.Context, roomName string, bump func(*Signal)) error {
	if c == nil {
		return ErrNotConfigured
	}

	current := Signal{}
	if metadata, err := c.RoomMetadata(ctx, roomName); err == nil {
		current = DecodeSignal(metadata)
	}

	bump(&current)
	return c.UpdateRoomMetadata(ctx, roomName, current.encode())
}
