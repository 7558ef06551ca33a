package api

import "github.com/konsulhq/konsul/pkg/models"

// CreateSessionRequest is the body of POST /api/session/create.
type CreateSessionRequest struct {
	Pattern       string         `json:"pattern"`
	VoiceSettings map[string]any `json:"voice_settings"`
}

// CreateSessionResponse carries the identifiers the browser needs to join.
// Warning is non-nil when room creation or token minting failed; the session
// still exists and works in API-only mode.
type CreateSessionResponse struct {
	SessionID  string  `json:"session_id"`
	UniqueLink string  `json:"unique_link"`
	RoomName   string  `json:"room_name"`
	Token      string  `json:"token,omitempty"`
	Warning    *string `json:"warning"`
}

// ReconnectResponse is the body of the reconnect endpoints.
type ReconnectResponse struct {
	SessionID string  `json:"session_id"`
	RoomName  string  `json:"room_name"`
	Status    string  `json:"status"`
	Token     string  `json:"token,omitempty"`
	Warning   *string `json:"warning"`
}

// AnketaResponse is the polled anketa shape.
type AnketaResponse struct {
	AnketaData     *models.Anketa        `json:"anketa_data"`
	AnketaMD       string                `json:"anketa_md"`
	Status         string                `json:"status"`
	RuntimeStatus  models.RuntimeStatus  `json:"runtime_status"`
	CompanyName    string                `json:"company_name"`
	UpdatedAt      string                `json:"updated_at"`
	CompletionRate float64               `json:"completion_rate"`
}

// UpdateAnketaRequest is the body of PUT/POST /api/session/{id}/anketa.
type UpdateAnketaRequest struct {
	AnketaData map[string]any `json:"anketa_data"`
	AnketaMD   string         `json:"anketa_md"`
}

// UpdateDialogueRequest is the agent-to-server dialogue sync body.
type UpdateDialogueRequest struct {
	DialogueHistory []models.DialogueTurn `json:"dialogue_history"`
	DurationSeconds float64               `json:"duration_seconds"`
	Status          string                `json:"status,omitempty"`
}

// UpdateRuntimeStatusRequest is the body of PUT /api/session/{id}/runtime-status.
type UpdateRuntimeStatusRequest struct {
	RuntimeStatus models.RuntimeStatus `json:"runtime_status"`
}

// DeleteSessionsRequest is the bulk delete body.
type DeleteSessionsRequest struct {
	SessionIDs []string `json:"session_ids"`
}

// ListSessionsResponse wraps the summary list.
type ListSessionsResponse struct {
	Sessions   []models.SessionSummary `json:"sessions"`
	TotalCount int                     `json:"total_count"`
}

// UploadedFile describes one stored document in the upload response.
type UploadedFile struct {
	Filename string `json:"filename"`
	Chars    int    `json:"chars"`
}

// UploadResponse is the body of POST /api/session/{id}/documents/upload.
type UploadResponse struct {
	Files   []UploadedFile `json:"files"`
	Summary string         `json:"summary,omitempty"`
}

// StatusResponse is the generic mutation acknowledgement.
type StatusResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}
