// Package bridge is the voice-agent side of the system: it joins a room,
// holds the realtime LLM session and feeds conversation turns into the
// per-session orchestrator.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/konsulhq/konsul/pkg/models"
)

const (
	defaultRealtimeModel = "gpt-4o-realtime-preview"
	defaultRealtimeURL   = "wss://api.openai.com/v1/realtime"

	// Server VAD tuning. Silence duration comes from voice_config.
	vadThreshold            = 0.6
	vadPrefixPaddingMs      = 300
	defaultSilenceDuration  = 1200
	defaultGreetingLockTime = time.Second
)

// DialConfig configures the realtime connection.
type DialConfig struct {
	APIKey  string
	Model   string
	BaseURL string

	// GreetingLock suppresses inbound audio right after the greeting so mic
	// noise cannot trigger an immediate second turn.
	GreetingLock time.Duration
}

// SessionSettings is the tunable part of the realtime session, derived from
// the stored voice config. The zero value yields defaults.
type SessionSettings struct {
	Voice             string
	Instructions      string
	SpeechSpeed       float64
	SilenceDurationMs int
	Language          string
}

// SettingsFromVoiceConfig maps a stored voice config onto realtime session
// parameters.
func SettingsFromVoiceConfig(vc *models.VoiceConfig, instructions string) SessionSettings {
	s := SessionSettings{
		Voice:             "alloy",
		Instructions:      instructions,
		SilenceDurationMs: defaultSilenceDuration,
	}
	if vc == nil {
		return s
	}
	switch vc.VoiceGender {
	case "female":
		s.Voice = "shimmer"
	case "male":
		s.Voice = "ash"
	}
	if vc.SpeechSpeed > 0 {
		s.SpeechSpeed = vc.SpeechSpeed
	}
	if vc.SilenceDurationMs > 0 {
		s.SilenceDurationMs = vc.SilenceDurationMs
	}
	s.Language = vc.Language
	return s
}

// Turn is a finished conversation item surfaced by the realtime session.
type Turn struct {
	Role string // user or assistant
	Text string
}

// RealtimeSession is one live connection to the realtime LLM. It implements
// the orchestrator's InstructionSink.
type RealtimeSession struct {
	conn  *websocket.Conn
	turns chan Turn
	audio chan []byte

	greetingLock time.Duration

	mu           sync.Mutex
	settings     SessionSettings
	lockedUntil  time.Time
	assistantBuf string
	errVal       error
	closed       bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Dial connects to the realtime endpoint and starts the receive loop. The
// caller must Configure before audio flows.
func Dial(ctx context.Context, cfg DialConfig) (*RealtimeSession, error) {
	model := cfg.Model
	if model == "" {
		model = defaultRealtimeModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultRealtimeURL
	}
	lock := cfg.GreetingLock
	if lock <= 0 {
		lock = defaultGreetingLockTime
	}

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("%s?model=%s", baseURL, model), &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + cfg.APIKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &RealtimeSession{
		conn:         conn,
		turns:        make(chan Turn, 16),
		audio:        make(chan []byte, 64),
		greetingLock: lock,
		ctx:          sessCtx,
		cancel:       cancel,
	}
	go s.receiveLoop()
	return s, nil
}

// outgoing protocol shapes

type sessionUpdateMsg struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Voice             string         `json:"voice,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Speed             float64        `json:"speed,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format"`
	OutputAudioFormat string         `json:"output_audio_format"`
	TurnDetection     *turnDetection `json:"turn_detection,omitempty"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type itemCreateMsg struct {
	Type string `json:"type"`
	Item item   `json:"item"`
}

type item struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []contentPart `json:"content,omitempty"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type responseCreateMsg struct {
	Type     string          `json:"type"`
	Response *responseParams `json:"response,omitempty"`
}

type responseParams struct {
	Instructions string `json:"instructions,omitempty"`
}

type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Configure sends a full session.update with voice, instructions and server
// VAD parameters. Safe to call mid-session; the model adopts new parameters
// without reconnecting.
func (s *RealtimeSession) Configure(ctx context.Context, settings SessionSettings) error {
	if settings.SilenceDurationMs <= 0 {
		settings.SilenceDurationMs = defaultSilenceDuration
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	return s.writeJSON(sessionUpdateMsg{
		Type: "session.update",
		Session: sessionParams{
			Voice:             settings.Voice,
			Instructions:      settings.Instructions,
			Speed:             settings.SpeechSpeed,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			TurnDetection: &turnDetection{
				Type:              "server_vad",
				Threshold:         vadThreshold,
				PrefixPaddingMs:   vadPrefixPaddingMs,
				SilenceDurationMs: settings.SilenceDurationMs,
			},
		},
	})
}

// SetInstructions swaps the system instructions in place, keeping the rest
// of the current settings.
func (s *RealtimeSession) SetInstructions(ctx context.Context, instructions string) error {
	s.mu.Lock()
	settings := s.settings
	settings.Instructions = instructions
	s.mu.Unlock()
	return s.Configure(ctx, settings)
}

// Settings returns the last applied session settings.
func (s *RealtimeSession) Settings() SessionSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Announce injects a system line into the conversation and asks the model to
// react to it (used for document-received notices).
func (s *RealtimeSession) Announce(ctx context.Context, text string) error {
	err := s.writeJSON(itemCreateMsg{
		Type: "conversation.item.create",
		Item: item{
			Type:    "message",
			Role:    "system",
			Content: []contentPart{{Type: "input_text", Text: text}},
		},
	})
	if err != nil {
		return err
	}
	return s.writeJSON(responseCreateMsg{Type: "response.create"})
}

// Greet triggers the opening reply and engages the greeting lock: inbound
// audio is dropped until the lock expires.
func (s *RealtimeSession) Greet(ctx context.Context, instructions string) error {
	s.mu.Lock()
	s.lockedUntil = time.Now().Add(s.greetingLock)
	s.mu.Unlock()

	msg := responseCreateMsg{Type: "response.create"}
	if instructions != "" {
		msg.Response = &responseParams{Instructions: instructions}
	}
	return s.writeJSON(msg)
}

// AppendAudio forwards one PCM16 chunk to the model. Chunks arriving during
// the greeting lock are silently dropped.
func (s *RealtimeSession) AppendAudio(chunk []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("realtime session closed")
	}
	locked := time.Now().Before(s.lockedUntil)
	s.mu.Unlock()
	if locked {
		return nil
	}

	return s.writeJSON(struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}{Type: "input_audio_buffer.append", Audio: base64.StdEncoding.EncodeToString(chunk)})
}

// Turns delivers finished conversation items in arrival order. Closed when
// the session ends.
func (s *RealtimeSession) Turns() <-chan Turn { return s.turns }

// Audio delivers the model's synthesized PCM16 chunks.
func (s *RealtimeSession) Audio() <-chan []byte { return s.audio }

// Err returns the error that terminated the receive loop, if any.
func (s *RealtimeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Close shuts the connection down. Idempotent.
func (s *RealtimeSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "session closed")
}

func (s *RealtimeSession) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

func (s *RealtimeSession) receiveLoop() {
	defer s.closeOnce.Do(func() {
		close(s.turns)
		close(s.audio)
	})

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				s.setErr(err)
			}
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		s.handleEvent(&evt)
	}
}

func (s *RealtimeSession) handleEvent(evt *serverEvent) {
	switch evt.Type {
	case "response.audio.delta":
		audio, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil || len(audio) == 0 {
			return
		}
		select {
		case s.audio <- audio:
		case <-s.ctx.Done():
		}

	case "response.audio_transcript.delta":
		s.mu.Lock()
		s.assistantBuf += evt.Delta
		s.mu.Unlock()

	case "response.audio_transcript.done":
		s.mu.Lock()
		text := s.assistantBuf
		s.assistantBuf = ""
		s.mu.Unlock()
		s.emit(Turn{Role: models.RoleAssistant, Text: text})

	case "conversation.item.input_audio_transcription.completed":
		s.emit(Turn{Role: models.RoleUser, Text: evt.Transcript})

	case "error":
		if evt.Error != nil {
			s.setErr(fmt.Errorf("realtime: %s", evt.Error.Message))
		}
	}
}

func (s *RealtimeSession) emit(t Turn) {
	if t.Text == "" {
		return
	}
	select {
	case s.turns <- t:
	case <-s.ctx.Done():
	}
}

func (s *RealtimeSession) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}
