package rooms

import (
	"context"
	"strings"
	"testing"

	"github.com/livekit/protocol/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutCredentials(t *testing.T) {
	assert.Nil(t, New("", "key", "secret"))
	assert.Nil(t, New("https://lk.example", "", "secret"))
	assert.Nil(t, New("https://lk.example", "key", ""))
}

func TestNilClientFailsClosed(t *testing.T) {
	var c *Client
	ctx := context.Background()

	_, err := c.EnsureRoom(ctx, "consultation-a1b2c3d4")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.ParticipantToken("consultation-a1b2c3d4", "client")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.ListRooms(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.ErrorIs(t, c.DeleteRoom(ctx, "x"), ErrNotConfigured)
	assert.ErrorIs(t, c.UpdateRoomMetadata(ctx, "x", "{}"), ErrNotConfigured)
	assert.ErrorIs(t, c.PokeVoiceConfig(ctx, "x"), ErrNotConfigured)
}

func TestParticipantTokenGrants(t *testing.T) {
	c := New("https://lk.example", "apikey", "apisecretapisecretapisecret")
	require.NotNil(t, c)

	token, err := c.ParticipantToken("consultation-a1b2c3d4", "client-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, 3, len(strings.Split(token, ".")), "JWT shape")

	verifier, err := auth.ParseAPIToken(token)
	require.NoError(t, err)
	assert.Equal(t, "apikey", verifier.APIKey())

	claims, err := verifier.Verify("apisecretapisecretapisecret")
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.Identity)
	require.NotNil(t, claims.Video)
	assert.True(t, claims.Video.RoomJoin)
	assert.Equal(t, "consultation-a1b2c3d4", claims.Video.Room)
}

func TestDecodeSignal(t *testing.T) {
	s := DecodeSignal(`{"voice_config_rev": 1700000000000}`)
	assert.Equal(t, int64(1700000000000), s.VoiceConfigRev)
	assert.Zero(t, s.DocumentsRev)

	assert.Zero(t, DecodeSignal("").VoiceConfigRev)
	assert.Zero(t, DecodeSignal("not json").VoiceConfigRev)
}

func TestSignalRoundTrip(t *testing.T) {
	in := Signal{VoiceConfigRev: 42, DocumentsRev: 7}
	out := DecodeSignal(in.encode())
	assert.Equal(t, in, out)
}
