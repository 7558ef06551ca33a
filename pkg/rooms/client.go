// Package rooms talks to the LiveKit control plane: room lifecycle, agent
// dispatch, participant tokens and the metadata channel used to signal the
// live agent.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/twitchtv/twirp"
)

const (
	// emptyRoomTTL is how long LiveKit keeps a room alive with nobody in it.
	emptyRoomTTL = 5 * time.Minute

	// rpcTimeout bounds every control-plane call.
	rpcTimeout = 5 * time.Second

	// participantTokenTTL is the lifetime of a minted join token.
	participantTokenTTL = 6 * time.Hour

	// AgentName is the dispatch target; the voice agent registers under it.
	AgentName = "konsul-voice-agent"
)

// ErrNotConfigured is returned by every method of a nil or credential-less
// client. The HTTP surface degrades to a warning instead of failing.
var ErrNotConfigured = errors.New("livekit is not configured")

// Client wraps the twirp RoomService plus token minting. A nil *Client is
// safe to call.
type Client struct {
	svc       livekit.RoomService
	apiKey    string
	apiSecret string
	logger    *slog.Logger
}

// New creates a Client. Returns nil (not an error) when credentials are
// absent so callers can carry a disabled client.
func New(hostURL, apiKey, apiSecret string) *Client {
	if hostURL == "" || apiKey == "" || apiSecret == "" {
		return nil
	}
	c := &Client{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		logger:    slog.With("component", "rooms"),
	}
	c.svc = livekit.NewRoomServiceProtobufClient(hostURL, &http.Client{
		Timeout:   rpcTimeout,
		Transport: &authTransport{base: http.DefaultTransport, client: c},
	})
	return c
}

// authTransport signs every control-plane request with a short-lived admin
// token.
type authTransport struct {
	base   http.RoundTripper
	client *Client
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.client.adminToken()
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(req)
}

func (c *Client) adminToken() (string, error) {
	at := auth.NewAccessToken(c.apiKey, c.apiSecret)
	grant := &auth.VideoGrant{
		RoomCreate: true,
		RoomList:   true,
		RoomAdmin:  true,
	}
	at.SetVideoGrant(grant).SetValidFor(time.Minute)
	return at.ToJWT()
}

// EnsureRoom creates (or re-creates) the session's room with the empty-room
// TTL and explicit agent dispatch. Idempotent on the LiveKit side.
func (c *Client) EnsureRoom(ctx context.Context, roomName string) (*livekit.Room, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	room, err := c.svc.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         roomName,
		EmptyTimeout: uint32(emptyRoomTTL.Seconds()),
		Agents: []*livekit.RoomAgentDispatch{
			{AgentName: AgentName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", roomName, err)
	}
	return room, nil
}

// ParticipantToken mints a join token for the browser client.
func (c *Client) ParticipantToken(roomName, identity string) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}
	canPublish := true
	canSubscribe := true

	at := auth.NewAccessToken(c.apiKey, c.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         roomName,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(participantTokenTTL)
	return at.ToJWT()
}

// ListRooms returns the active rooms.
func (c *Client) ListRooms(ctx context.Context) ([]*livekit.Room, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := c.svc.ListRooms(ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// RoomExists reports whether a room is currently alive.
func (c *Client) RoomExists(ctx context.Context, roomName string) (bool, error) {
	if c == nil {
		return false, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := c.svc.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{roomName}})
	if err != nil {
		return false, fmt.Errorf("list rooms: %w", err)
	}
	return len(resp.Rooms) > 0, nil
}

// DeleteRoom tears a room down. Absent rooms are not an error.
func (c *Client) DeleteRoom(ctx context.Context, roomName string) error {
	if c == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	_, err := c.svc.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: roomName})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete room %s: %w", roomName, err)
	}
	return nil
}

// DeleteAllRooms is the admin sweep behind DELETE /rooms. Returns how many
// rooms were removed.
func (c *Client) DeleteAllRooms(ctx context.Context) (int, error) {
	if c == nil {
		return 0, ErrNotConfigured
	}
	rooms, err := c.ListRooms(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, room := range rooms {
		if err := c.DeleteRoom(ctx, room.Name); err != nil {
			c.logger.Warn("Room delete failed during sweep", "room", room.Name, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// UpdateRoomMetadata writes the metadata blob the in-room agent watches for
// voice-config changes and document pings.
func (c *Client) UpdateRoomMetadata(ctx context.Context, roomName, metadata string) error {
	if c == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	_, err := c.svc.UpdateRoomMetadata(ctx, &livekit.UpdateRoomMetadataRequest{
		Room:     roomName,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("update room metadata %s: %w", roomName, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var twErr twirp.Error
	return errors.As(err, &twErr) && twErr.Code() == twirp.NotFound
}
