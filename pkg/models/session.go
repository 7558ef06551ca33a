package models

import "time"

// Session statuses persisted in the sessions table.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusReviewing = "reviewing"
	StatusConfirmed = "confirmed"
	StatusDeclined  = "declined"
)

// Dialogue roles. The bridge normalises whatever the realtime model reports
// (ASSISTANT, Assistant, …) down to these two values.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DialogueTurn is a single turn of the consultation dialogue.
type DialogueTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase,omitempty"`
}

// DocumentDigest summarises one uploaded document after parsing.
type DocumentDigest struct {
	Filename string `json:"filename"`
	Summary  string `json:"summary"`
	Chars    int    `json:"chars"`
}

// DocumentContext is the structured summary of all uploaded files for a
// session. Chunk-level content is stripped before persistence; only the
// digest survives.
type DocumentContext struct {
	Summary           string           `json:"summary"`
	KeyFacts          []string         `json:"key_facts,omitempty"`
	ServicesMentioned []string         `json:"services_mentioned,omitempty"`
	AllContacts       []string         `json:"all_contacts,omitempty"`
	Documents         []DocumentDigest `json:"documents,omitempty"`
	ResearchNotes     string           `json:"research_notes,omitempty"`
}

// Session is the central persisted entity. Large nested shapes
// (DialogueHistory, AnketaData, DocumentContext, VoiceConfig) ride in JSON
// text columns; the scalar fields support cheap dashboard queries.
type Session struct {
	SessionID       string           `json:"session_id"`
	UniqueLink      string           `json:"unique_link"`
	RoomName        string           `json:"room_name"`
	Status          string           `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DialogueHistory []DialogueTurn   `json:"dialogue_history"`
	AnketaData      *Anketa          `json:"anketa_data,omitempty"`
	AnketaMD        string           `json:"anketa_md,omitempty"`
	CompanyName     string           `json:"company_name,omitempty"`
	ContactName     string           `json:"contact_name,omitempty"`
	DurationSeconds float64          `json:"duration_seconds"`
	OutputDir       string           `json:"output_dir,omitempty"`
	DocumentContext *DocumentContext `json:"document_context,omitempty"`
	VoiceConfig     *VoiceConfig     `json:"voice_config,omitempty"`
}

// SessionSummary is the lightweight list-view shape. It never carries
// dialogue history or anketa data.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	UniqueLink   string    `json:"unique_link"`
	RoomName     string    `json:"room_name"`
	Status       string    `json:"status"`
	CompanyName  string    `json:"company_name,omitempty"`
	ContactName  string    `json:"contact_name,omitempty"`
	HasDocuments bool      `json:"has_documents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoomNameFor returns the conventional room name for a session.
func RoomNameFor(sessionID string) string {
	return "consultation-" + sessionID
}

// SessionIDFromRoom reverses RoomNameFor. Returns "" when the room does not
// follow the convention.
func SessionIDFromRoom(roomName string) string {
	const prefix = "consultation-"
	if len(roomName) > len(prefix) && roomName[:len(prefix)] == prefix {
		return roomName[len(prefix):]
	}
	return ""
}
