package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/konsulhq/konsul/pkg/models"
)

const sessionColumns = `session_id, room_name, unique_link, status, created_at, updated_at,
	dialogue_history, anketa_data, anketa_md, company_name, contact_name,
	duration_seconds, output_dir, document_context, voice_config`

// newSessionID returns a short opaque 8-hex identifier.
func newSessionID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func now() time.Time {
	return time.Now().UTC()
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isConstraintErr(err error) bool {
	var sqlErr sqlite3.Error
	return errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint
}

// marshalNullable encodes v as JSON, returning a NULL-able column value.
// A nil pointer becomes sql NULL.
func marshalNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// CreateSession generates both identifiers, persists defaults, and returns
// the full record. An optional voice config is stored as provided.
func (s *Store) CreateSession(ctx context.Context, voiceConfig *models.VoiceConfig) (*models.Session, error) {
	var vc any
	if voiceConfig != nil {
		vc = voiceConfig
	}
	vcJSON, err := marshalNullable(vc)
	if err != nil {
		return nil, storageErr("create: marshal voice config", err)
	}

	// Retry on the (unlikely) 8-hex collision.
	for attempt := 0; attempt < 5; attempt++ {
		id, err := newSessionID()
		if err != nil {
			return nil, storageErr("create", err)
		}
		sess := &models.Session{
			SessionID:       id,
			UniqueLink:      uuid.NewString(),
			RoomName:        models.RoomNameFor(id),
			Status:          models.StatusActive,
			CreatedAt:       now(),
			DialogueHistory: []models.DialogueTurn{},
			VoiceConfig:     voiceConfig,
		}
		sess.UpdatedAt = sess.CreatedAt

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO sessions (session_id, room_name, unique_link, status, created_at, updated_at, dialogue_history, voice_config)
			VALUES (?, ?, ?, ?, ?, ?, '[]', ?)`,
			sess.SessionID, sess.RoomName, sess.UniqueLink, sess.Status,
			formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt), vcJSON)
		if err != nil {
			if isConstraintErr(err) {
				continue
			}
			return nil, storageErr("create", err)
		}
		return sess, nil
	}
	return nil, storageErr("create", errors.New("session id space exhausted after 5 attempts"))
}

// GetSession retrieves a session by its primary identifier.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

// GetSessionByLink retrieves a session by its public unique link.
func (s *Store) GetSessionByLink(ctx context.Context, uniqueLink string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE unique_link = ?`, uniqueLink)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		sess                            models.Session
		createdAt, updatedAt, dialogue  string
		anketa, anketaMD, company       sql.NullString
		contact, outputDir, docCtx, vc  sql.NullString
	)

	err := row.Scan(
		&sess.SessionID, &sess.RoomName, &sess.UniqueLink, &sess.Status,
		&createdAt, &updatedAt, &dialogue, &anketa, &anketaMD,
		&company, &contact, &sess.DurationSeconds, &outputDir, &docCtx, &vc,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get", err)
	}

	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	sess.AnketaMD = anketaMD.String
	sess.CompanyName = company.String
	sess.ContactName = contact.String
	sess.OutputDir = outputDir.String

	if err := json.Unmarshal([]byte(dialogue), &sess.DialogueHistory); err != nil {
		return nil, storageErr("get: decode dialogue", err)
	}
	if sess.DialogueHistory == nil {
		sess.DialogueHistory = []models.DialogueTurn{}
	}
	if anketa.Valid {
		sess.AnketaData = &models.Anketa{}
		if err := json.Unmarshal([]byte(anketa.String), sess.AnketaData); err != nil {
			return nil, storageErr("get: decode anketa", err)
		}
	}
	if docCtx.Valid {
		sess.DocumentContext = &models.DocumentContext{}
		if err := json.Unmarshal([]byte(docCtx.String), sess.DocumentContext); err != nil {
			return nil, storageErr("get: decode document context", err)
		}
	}
	if vc.Valid {
		sess.VoiceConfig = &models.VoiceConfig{}
		if err := json.Unmarshal([]byte(vc.String), sess.VoiceConfig); err != nil {
			return nil, storageErr("get: decode voice config", err)
		}
	}

	return &sess, nil
}

// UpdateSession performs a full-record overwrite (last-writer-wins) and
// bumps updated_at. session_id, unique_link and created_at never change.
func (s *Store) UpdateSession(ctx context.Context, sess *models.Session) error {
	dialogue, err := json.Marshal(sess.DialogueHistory)
	if err != nil {
		return storageErr("update: marshal dialogue", err)
	}
	anketa, err := marshalNullable(nullablePtr(sess.AnketaData))
	if err != nil {
		return storageErr("update: marshal anketa", err)
	}
	docCtx, err := marshalNullable(nullablePtr(sess.DocumentContext))
	if err != nil {
		return storageErr("update: marshal document context", err)
	}
	vc, err := marshalNullable(nullablePtr(sess.VoiceConfig))
	if err != nil {
		return storageErr("update: marshal voice config", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET room_name = ?, status = ?, updated_at = ?,
			dialogue_history = ?, anketa_data = ?, anketa_md = ?,
			company_name = ?, contact_name = ?, duration_seconds = ?,
			output_dir = ?, document_context = ?, voice_config = ?
		WHERE session_id = ?`,
		sess.RoomName, sess.Status, formatTime(now()), string(dialogue),
		anketa, nullString(sess.AnketaMD), nullString(sess.CompanyName),
		nullString(sess.ContactName), sess.DurationSeconds,
		nullString(sess.OutputDir), docCtx, vc, sess.SessionID)
	if err != nil {
		return storageErr("update", err)
	}
	return checkFound(res, "update")
}

// UpdateAnketa atomically writes the two anketa fields and updated_at.
// consultation_duration_seconds is kept monotonic non-decreasing; the
// denormalized company/contact columns are re-derived from the anketa.
func (s *Store) UpdateAnketa(ctx context.Context, sessionID string, anketa *models.Anketa, anketaMD string) error {
	existing, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if anketa != nil && existing.AnketaData != nil &&
		anketa.ConsultationDurationSeconds < existing.AnketaData.ConsultationDurationSeconds {
		anketa.ConsultationDurationSeconds = existing.AnketaData.ConsultationDurationSeconds
	}

	anketaJSON, err := marshalNullable(nullablePtr(anketa))
	if err != nil {
		return storageErr("update anketa: marshal", err)
	}

	company := existing.CompanyName
	contact := existing.ContactName
	if anketa != nil {
		if anketa.CompanyName != "" {
			company = anketa.CompanyName
		}
		if anketa.ContactName != "" {
			contact = anketa.ContactName
		}
	}

	md := nullString(anketaMD)
	if anketaMD == "" {
		md = nullString(existing.AnketaMD)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET anketa_data = ?, anketa_md = ?, company_name = ?, contact_name = ?, updated_at = ?
		WHERE session_id = ?`,
		anketaJSON, md, nullString(company), nullString(contact),
		formatTime(now()), sessionID)
	if err != nil {
		return storageErr("update anketa", err)
	}
	return checkFound(res, "update anketa")
}

// UpdateInterviewAnketa persists the interview-mode extraction shape into
// the same anketa_data column. Identity columns are derived the same way as
// for the standard shape.
func (s *Store) UpdateInterviewAnketa(ctx context.Context, sessionID string, anketa *models.InterviewAnketa, anketaMD string) error {
	existing, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	anketaJSON, err := marshalNullable(nullablePtr(anketa))
	if err != nil {
		return storageErr("update interview anketa: marshal", err)
	}

	company := existing.CompanyName
	contact := existing.ContactName
	if anketa != nil {
		if anketa.CompanyName != "" {
			company = anketa.CompanyName
		}
		if anketa.ContactName != "" {
			contact = anketa.ContactName
		}
	}

	md := nullString(anketaMD)
	if anketaMD == "" {
		md = nullString(existing.AnketaMD)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET anketa_data = ?, anketa_md = ?, company_name = ?, contact_name = ?, updated_at = ?
		WHERE session_id = ?`,
		anketaJSON, md, nullString(company), nullString(contact),
		formatTime(now()), sessionID)
	if err != nil {
		return storageErr("update interview anketa", err)
	}
	return checkFound(res, "update interview anketa")
}

// UpdateDialogue atomically writes dialogue plus duration, optionally
// requesting a status transition which is validated before commit.
func (s *Store) UpdateDialogue(ctx context.Context, sessionID string, dialogue []models.DialogueTurn, durationSeconds float64, status string) error {
	existing, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if status != "" && status != existing.Status {
		if err := models.ValidateTransition(existing.Status, status); err != nil {
			return err
		}
	}
	if status == "" {
		status = existing.Status
	}

	if dialogue == nil {
		dialogue = []models.DialogueTurn{}
	}
	dialogueJSON, err := json.Marshal(dialogue)
	if err != nil {
		return storageErr("update dialogue: marshal", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET dialogue_history = ?, duration_seconds = ?, status = ?, updated_at = ?
		WHERE session_id = ?`,
		string(dialogueJSON), durationSeconds, status, formatTime(now()), sessionID)
	if err != nil {
		return storageErr("update dialogue", err)
	}
	return checkFound(res, "update dialogue")
}

// UpdateStatus validates the transition through the state machine and
// commits the new status. force is the admin override that skips validation.
func (s *Store) UpdateStatus(ctx context.Context, sessionID, newStatus string, force bool) error {
	if !models.ValidStatus(newStatus) {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", newStatus))
	}

	existing, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if !force {
		if err := models.ValidateTransition(existing.Status, newStatus); err != nil {
			return err
		}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?`,
		newStatus, formatTime(now()), sessionID)
	if err != nil {
		return storageErr("update status", err)
	}
	return checkFound(res, "update status")
}

// UpdateVoiceConfig merges a filtered subset of recognised keys over the
// stored config. Unknown keys are silently dropped here; the HTTP surface
// has already rejected them.
func (s *Store) UpdateVoiceConfig(ctx context.Context, sessionID string, fields map[string]any) error {
	existing, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	cfg := existing.VoiceConfig
	if cfg == nil {
		cfg = &models.VoiceConfig{}
	}
	cfg.Merge(models.FilterVoiceConfigKeys(fields))

	vcJSON, err := marshalNullable(cfg)
	if err != nil {
		return storageErr("update voice config: marshal", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET voice_config = ?, updated_at = ? WHERE session_id = ?`,
		vcJSON, formatTime(now()), sessionID)
	if err != nil {
		return storageErr("update voice config", err)
	}
	return checkFound(res, "update voice config")
}

// UpdateMetadata sets the denormalized company/contact columns. Nil pointers
// leave the current value untouched.
func (s *Store) UpdateMetadata(ctx context.Context, sessionID string, companyName, contactName *string) error {
	existing, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	company := existing.CompanyName
	contact := existing.ContactName
	if companyName != nil {
		company = *companyName
	}
	if contactName != nil {
		contact = *contactName
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET company_name = ?, contact_name = ?, updated_at = ? WHERE session_id = ?`,
		nullString(company), nullString(contact), formatTime(now()), sessionID)
	if err != nil {
		return storageErr("update metadata", err)
	}
	return checkFound(res, "update metadata")
}

// UpdateDocumentContext replaces the stored document context.
func (s *Store) UpdateDocumentContext(ctx context.Context, sessionID string, docCtx *models.DocumentContext) error {
	dcJSON, err := marshalNullable(nullablePtr(docCtx))
	if err != nil {
		return storageErr("update document context: marshal", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET document_context = ?, updated_at = ? WHERE session_id = ?`,
		dcJSON, formatTime(now()), sessionID)
	if err != nil {
		return storageErr("update document context", err)
	}
	return checkFound(res, "update document context")
}

// UpdateOutputDir records the on-disk export directory for the session.
func (s *Store) UpdateOutputDir(ctx context.Context, sessionID, outputDir string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET output_dir = ?, updated_at = ? WHERE session_id = ?`,
		nullString(outputDir), formatTime(now()), sessionID)
	if err != nil {
		return storageErr("update output dir", err)
	}
	return checkFound(res, "update output dir")
}

// ListSessionsSummary returns lightweight summaries plus the total count for
// the filter. Dialogue history and anketa data are never loaded.
func (s *Store) ListSessionsSummary(ctx context.Context, status string, limit, offset int) ([]models.SessionSummary, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, storageErr("list: count", err)
	}

	query := `SELECT session_id, room_name, unique_link, status, company_name, contact_name,
		document_context IS NOT NULL, created_at, updated_at
		FROM sessions` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, storageErr("list", err)
	}
	defer rows.Close()

	summaries := make([]models.SessionSummary, 0, limit)
	for rows.Next() {
		var (
			sum                  models.SessionSummary
			company, contact     sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&sum.SessionID, &sum.RoomName, &sum.UniqueLink, &sum.Status,
			&company, &contact, &sum.HasDocuments, &createdAt, &updatedAt); err != nil {
			return nil, 0, storageErr("list: scan", err)
		}
		sum.CompanyName = company.String
		sum.ContactName = contact.String
		sum.CreatedAt = parseTime(createdAt)
		sum.UpdatedAt = parseTime(updatedAt)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("list", err)
	}

	return summaries, total, nil
}

// DeleteSessions hard-deletes the given sessions and returns how many rows
// were removed. Associated rooms and files are cleaned by the caller.
func (s *Store) DeleteSessions(ctx context.Context, sessionIDs []string) (int, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sessionIDs)), ",")
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, storageErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("delete", err)
	}
	return int(n), nil
}

// RecordLearning appends a knowledge-base learning entry.
func (s *Store) RecordLearning(ctx context.Context, industry, message, source string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learnings (industry, message, source, created_at) VALUES (?, ?, ?, ?)`,
		industry, message, source, formatTime(now()))
	if err != nil {
		return storageErr("record learning", err)
	}
	return nil
}

// Learning is one knowledge-base learning entry.
type Learning struct {
	ID        int64     `json:"id"`
	Industry  string    `json:"industry"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListLearnings returns recent learnings, newest first, optionally filtered
// by industry. limit is clamped to [1, 200].
func (s *Store) ListLearnings(ctx context.Context, industry string, limit int) ([]Learning, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	where := ""
	args := []any{}
	if industry != "" {
		where = " WHERE industry = ?"
		args = append(args, industry)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, industry, message, source, created_at FROM learnings`+where+
			` ORDER BY id DESC LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, storageErr("list learnings", err)
	}
	defer rows.Close()

	learnings := make([]Learning, 0, limit)
	for rows.Next() {
		var (
			l         Learning
			createdAt string
		)
		if err := rows.Scan(&l.ID, &l.Industry, &l.Message, &l.Source, &createdAt); err != nil {
			return nil, storageErr("list learnings: scan", err)
		}
		l.CreatedAt = parseTime(createdAt)
		learnings = append(learnings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list learnings", err)
	}
	return learnings, nil
}

func checkFound(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullablePtr converts a typed nil pointer into an untyped nil so that
// marshalNullable produces sql NULL instead of the JSON string "null".
func nullablePtr[T any](p *T) any {
	if p == nil {
		return nil
	}
	return p
}
