package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsulhq/konsul/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "konsul.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateSessionDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	assert.Len(t, sess.SessionID, 8)
	assert.Regexp(t, "^[a-f0-9]{8}$", sess.SessionID)
	_, err = uuid.Parse(sess.UniqueLink)
	assert.NoError(t, err, "unique link is UUID-formatted")
	assert.Equal(t, "consultation-"+sess.SessionID, sess.RoomName)

	got, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Empty(t, got.DialogueHistory)
	assert.Nil(t, got.AnketaData)
	assert.Nil(t, got.VoiceConfig)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestGetSessionByLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, &models.VoiceConfig{ConsultationType: "interview"})
	require.NoError(t, err)

	got, err := s.GetSessionByLink(ctx, sess.UniqueLink)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, got.SessionID)
	require.NotNil(t, got.VoiceConfig)
	assert.Equal(t, "interview", got.VoiceConfig.ConsultationType)

	_, err = s.GetSessionByLink(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatedAtAdvances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.UpdateAnketa(ctx, sess.SessionID, &models.Anketa{CompanyName: "X"}, ""))

	got, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt), "updated_at advances on write")
	assert.Equal(t, sess.UniqueLink, got.UniqueLink, "unique_link never changes")
	assert.True(t, sess.CreatedAt.Equal(got.CreatedAt), "created_at never changes")
}

func TestAnketaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	in := &models.Anketa{
		CompanyName:         "ООО Ромашка",
		Industry:            "Цветы",
		BusinessDescription: "доставка букетов",
		Services:            []string{"букеты", "подписка"},
		Integrations:        []models.Integration{{Name: "amoCRM", Required: true}},
		FAQ:                 []models.FAQItem{{Question: "Как оплатить?", Answer: "Картой"}},
		FinancialMetrics:    &models.FinancialMetrics{AverageCheck: "3500", Currency: "RUB"},
	}
	require.NoError(t, s.UpdateAnketa(ctx, sess.SessionID, in, "# Ромашка"))

	got, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, in, got.AnketaData)
	assert.Equal(t, "# Ромашка", got.AnketaMD)
	assert.Equal(t, "ООО Ромашка", got.CompanyName, "company denormalized from anketa")
}

func TestAnketaDurationMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateAnketa(ctx, sess.SessionID,
		&models.Anketa{ConsultationDurationSeconds: 120}, ""))
	require.NoError(t, s.UpdateAnketa(ctx, sess.SessionID,
		&models.Anketa{ConsultationDurationSeconds: 60}, ""))

	got, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.AnketaData.ConsultationDurationSeconds)
}

func TestUpdateStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, models.StatusPaused, false))
	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, models.StatusActive, false))
	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, models.StatusReviewing, false))
	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, models.StatusConfirmed, false))

	// Terminal status admits no further non-force writes; stored value holds.
	err = s.UpdateStatus(ctx, sess.SessionID, models.StatusActive, false)
	var invalid *models.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))

	got, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	// Admin override skips validation.
	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, models.StatusDeclined, true))
}

func TestUpdateDialogueWithStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	turns := []models.DialogueTurn{
		{Role: models.RoleUser, Content: "привет", Timestamp: time.Now().UTC(), Phase: "greeting"},
		{Role: models.RoleAssistant, Content: "здравствуйте", Timestamp: time.Now().UTC()},
	}
	require.NoError(t, s.UpdateDialogue(ctx, sess.SessionID, turns, 42.5, models.StatusReviewing))

	got, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Len(t, got.DialogueHistory, 2)
	assert.Equal(t, "привет", got.DialogueHistory[0].Content)
	assert.Equal(t, 42.5, got.DurationSeconds)
	assert.Equal(t, models.StatusReviewing, got.Status)

	// Invalid requested transition leaves everything uncommitted.
	err = s.UpdateDialogue(ctx, sess.SessionID, nil, 50, models.StatusActive)
	var invalid *models.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	got, err = s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Len(t, got.DialogueHistory, 2, "dialogue untouched on invalid transition")
}

func TestUpdateVoiceConfigFiltersUnknownKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateVoiceConfig(ctx, sess.SessionID, map[string]any{
		"voice_gender":        "male",
		"silence_duration_ms": 800.0,
		"evil_key":            "x",
	}))

	got, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got.VoiceConfig)
	assert.Equal(t, "male", got.VoiceConfig.VoiceGender)
	assert.Equal(t, 800, got.VoiceConfig.SilenceDurationMs)
}

func TestListSessionsSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.CreateSession(ctx, nil)
		require.NoError(t, err)
	}

	summaries, total, err := s.ListSessionsSummary(ctx, "", 200, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, summaries, 3)
	for _, sum := range summaries {
		assert.Equal(t, models.StatusActive, sum.Status)
		assert.False(t, sum.HasDocuments)
	}

	_, total, err = s.ListSessionsSummary(ctx, models.StatusPaused, 200, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDeleteSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sess, err := s.CreateSession(ctx, nil)
		require.NoError(t, err)
		ids = append(ids, sess.SessionID)
	}

	deleted, err := s.DeleteSessions(ctx, []string{ids[0], ids[1], "deadbeef"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = s.GetSession(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)

	_, total, err := s.ListSessionsSummary(ctx, "", 200, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestLearnings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordLearning(ctx, "logistics", "clients ask about tracking", "dialogue"))
	require.NoError(t, s.RecordLearning(ctx, "retail", "упоминают доставку", "research"))

	all, err := s.ListLearnings(ctx, "", 200)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "retail", all[0].Industry, "newest first")

	filtered, err := s.ListLearnings(ctx, "logistics", 200)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "clients ask about tracking", filtered[0].Message)
}

func TestNotFoundMapping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSession(ctx, "deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateAnketa(ctx, "deadbeef", &models.Anketa{}, ""), ErrNotFound)
	assert.ErrorIs(t, s.UpdateStatus(ctx, "deadbeef", models.StatusPaused, false), ErrNotFound)
	assert.ErrorIs(t, s.UpdateMetadata(ctx, "deadbeef", nil, nil), ErrNotFound)
}
