package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/orchestrator"
	"github.com/konsulhq/konsul/pkg/rooms"
	"github.com/konsulhq/konsul/pkg/store"
)

const defaultPollInterval = 3 * time.Second

// Config wires the bridge's collaborators. Orchestrator.Sink is filled in
// per room with the live realtime session.
type Config struct {
	Store        *store.Store
	Rooms        *rooms.Client
	Orchestrator orchestrator.Deps
	Dial         DialConfig

	// PollInterval is how often room metadata is checked for config pings.
	PollInterval time.Duration
}

// Bridge runs one voice session per room: it owns the realtime connection,
// watches room metadata for server-side pings and drives the orchestrator.
type Bridge struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Bridge.
func New(cfg Config) *Bridge {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Bridge{
		cfg:    cfg,
		logger: slog.With("component", "bridge"),
	}
}

// Run serves one room until the context is cancelled or the realtime
// connection drops, then finalizes the session. Blocking.
func (b *Bridge) Run(ctx context.Context, roomName string) error {
	sessionID := models.SessionIDFromRoom(roomName)
	if sessionID == "" {
		// Standalone mode: no persisted session behind this room.
		sessionID = roomName
	}
	logger := b.logger.With("room", roomName, "session_id", sessionID)

	var voiceConfig *models.VoiceConfig
	var baseDuration float64
	if sess, err := b.cfg.Store.GetSession(ctx, sessionID); err == nil {
		voiceConfig = sess.VoiceConfig
		baseDuration = sess.DurationSeconds
	}

	rt, err := Dial(ctx, b.cfg.Dial)
	if err != nil {
		return fmt.Errorf("room %s: %w", roomName, err)
	}
	defer rt.Close()

	settings := SettingsFromVoiceConfig(voiceConfig, b.cfg.Orchestrator.BasePrompt)
	if err := rt.Configure(ctx, settings); err != nil {
		return fmt.Errorf("room %s: configure: %w", roomName, err)
	}

	deps := b.cfg.Orchestrator
	deps.Sink = rt
	orch := orchestrator.New(ctx, sessionID, deps)

	if err := rt.Greet(ctx, "Поприветствуй клиента и спроси, чем занимается его бизнес."); err != nil {
		logger.Warn("Greeting failed", "error", err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go b.watchMetadata(watchCtx, roomName, sessionID, rt, orch)

	// The media publisher owns outbound audio. Drain the channel so the
	// receive loop never blocks when no publisher is attached.
	go func() {
		for range rt.Audio() {
		}
	}()

	startedAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return b.finalize(rt, orch, logger)

		case turn, ok := <-rt.Turns():
			if !ok {
				if err := rt.Err(); err != nil {
					logger.Error("Realtime session failed", "error", err)
				}
				return b.finalize(rt, orch, logger)
			}
			duration := baseDuration + time.Since(startedAt).Seconds()
			orch.OnTurn(ctx, models.DialogueTurn{
				Role:      turn.Role,
				Content:   turn.Text,
				Timestamp: time.Now().UTC(),
				Phase:     "voice",
			}, duration)
		}
	}
}

// watchMetadata polls the room metadata for server pings: a bumped
// voice-config revision re-applies stored settings to the live model, a
// bumped documents revision feeds fresh document context to the orchestrator.
func (b *Bridge) watchMetadata(ctx context.Context, roomName, sessionID string, rt *RealtimeSession, orch *orchestrator.Orchestrator) {
	if b.cfg.Rooms == nil {
		return
	}
	logger := b.logger.With("room", roomName)

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	var last rooms.Signal
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		metadata, err := b.cfg.Rooms.RoomMetadata(ctx, roomName)
		if err != nil {
			continue
		}
		signal := rooms.DecodeSignal(metadata)

		if signal.VoiceConfigRev > last.VoiceConfigRev {
			if sess, err := b.cfg.Store.GetSession(ctx, sessionID); err == nil {
				settings := SettingsFromVoiceConfig(sess.VoiceConfig, rt.Settings().Instructions)
				if err := rt.Configure(ctx, settings); err != nil {
					logger.Warn("Voice config reload failed", "error", err)
				} else {
					logger.Info("Voice config reloaded", "silence_ms", settings.SilenceDurationMs)
				}
			}
		}

		if signal.DocumentsRev > last.DocumentsRev {
			if sess, err := b.cfg.Store.GetSession(ctx, sessionID); err == nil && sess.DocumentContext != nil {
				orch.OnDocumentContext(ctx, sess.DocumentContext)
			}
		}

		last = signal
	}
}

func (b *Bridge) finalize(rt *RealtimeSession, orch *orchestrator.Orchestrator, logger *slog.Logger) error {
	// Finalization runs on a fresh context; the room context is usually
	// already cancelled when we get here.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rt.Close()
	if err := orch.FinalizeAndSave(ctx); err != nil {
		logger.Error("Finalization failed", "error", err)
		return err
	}
	logger.Info("Session finalized")
	return nil
}
