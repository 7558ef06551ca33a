package models

import "fmt"

// Consultation types routed by the extraction coordinator.
const (
	ConsultationTypeConsultation = "consultation"
	ConsultationTypeInteraction  = "interaction"
	ConsultationTypeManagement   = "management"
	ConsultationTypeInterview    = "interview"
)

// Bounds for numeric voice settings.
const (
	MinSpeechSpeed       = 0.5
	MaxSpeechSpeed       = 2.0
	MinSilenceDurationMs = 300
	MaxSilenceDurationMs = 10000
)

// VoiceConfig is the closed set of client-tunable voice parameters.
// Unknown keys are rejected at the HTTP boundary and filtered again at the
// storage boundary.
type VoiceConfig struct {
	ConsultationType  string  `json:"consultation_type,omitempty"`
	VoiceGender       string  `json:"voice_gender,omitempty"`
	VoiceTone         string  `json:"voice_tone,omitempty"`
	Language          string  `json:"language,omitempty"`
	SpeechSpeed       float64 `json:"speech_speed,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	LLMProvider       string  `json:"llm_provider,omitempty"`
	Verbosity         string  `json:"verbosity,omitempty"`
}

// voiceConfigKeys is the recognised key set; anything else is dropped by
// FilterVoiceConfigKeys and rejected by the HTTP surface.
var voiceConfigKeys = map[string]bool{
	"consultation_type":   true,
	"voice_gender":        true,
	"voice_tone":          true,
	"language":            true,
	"speech_speed":        true,
	"silence_duration_ms": true,
	"llm_provider":        true,
	"verbosity":           true,
}

// IsVoiceConfigKey reports whether k is a recognised voice config key.
func IsVoiceConfigKey(k string) bool {
	return voiceConfigKeys[k]
}

// FilterVoiceConfigKeys drops unknown keys from a raw settings map. The HTTP
// surface has already rejected invalid keys; this is the storage-boundary
// second line of defence.
func FilterVoiceConfigKeys(raw map[string]any) map[string]any {
	filtered := make(map[string]any, len(raw))
	for k, v := range raw {
		if voiceConfigKeys[k] {
			filtered[k] = v
		}
	}
	return filtered
}

// ValidateVoiceConfigValue type- and range-checks one recognised key's value
// as it arrives from JSON (strings and float64 numbers).
func ValidateVoiceConfigValue(key string, value any) error {
	switch key {
	case "consultation_type":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("consultation_type must be a string")
		}
		switch s {
		case ConsultationTypeConsultation, ConsultationTypeInteraction,
			ConsultationTypeManagement, ConsultationTypeInterview:
			return nil
		}
		return fmt.Errorf("unknown consultation_type %q", s)
	case "voice_gender":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("voice_gender must be a string")
		}
		switch s {
		case "male", "female", "neutral":
			return nil
		}
		return fmt.Errorf("unknown voice_gender %q", s)
	case "verbosity":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("verbosity must be a string")
		}
		switch s {
		case "concise", "normal", "verbose":
			return nil
		}
		return fmt.Errorf("unknown verbosity %q", s)
	case "voice_tone", "language", "llm_provider":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s must be a string", key)
		}
		return nil
	case "speech_speed":
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("speech_speed must be a number")
		}
		if f < MinSpeechSpeed || f > MaxSpeechSpeed {
			return fmt.Errorf("speech_speed must be between %.1f and %.1f", MinSpeechSpeed, MaxSpeechSpeed)
		}
		return nil
	case "silence_duration_ms":
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("silence_duration_ms must be a number")
		}
		if f != float64(int(f)) {
			return fmt.Errorf("silence_duration_ms must be an integer")
		}
		if int(f) < MinSilenceDurationMs || int(f) > MaxSilenceDurationMs {
			return fmt.Errorf("silence_duration_ms must be between %d and %d", MinSilenceDurationMs, MaxSilenceDurationMs)
		}
		return nil
	default:
		return fmt.Errorf("unknown voice config key %q", key)
	}
}

// Merge overlays the recognised keys of raw onto the config. Keys absent
// from raw are left untouched. raw is assumed pre-filtered.
func (v *VoiceConfig) Merge(raw map[string]any) {
	if s, ok := raw["consultation_type"].(string); ok {
		v.ConsultationType = s
	}
	if s, ok := raw["voice_gender"].(string); ok {
		v.VoiceGender = s
	}
	if s, ok := raw["voice_tone"].(string); ok {
		v.VoiceTone = s
	}
	if s, ok := raw["language"].(string); ok {
		v.Language = s
	}
	if f, ok := raw["speech_speed"].(float64); ok {
		v.SpeechSpeed = f
	}
	if f, ok := raw["silence_duration_ms"].(float64); ok {
		v.SilenceDurationMs = int(f)
	}
	if s, ok := raw["llm_provider"].(string); ok {
		v.LLMProvider = s
	}
	if s, ok := raw["verbosity"].(string); ok {
		v.Verbosity = s
	}
}
