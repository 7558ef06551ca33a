// Package orchestrator drives one consultation: it watches dialogue growth,
// schedules debounced background extractions, injects industry knowledge,
// kicks off research, switches the agent into the review phase and finalizes
// the session. One instance per active session, hosted by the voice bridge.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/konsulhq/konsul/pkg/export"
	"github.com/konsulhq/konsul/pkg/extraction"
	"github.com/konsulhq/konsul/pkg/knowledge"
	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/postprocess"
	"github.com/konsulhq/konsul/pkg/research"
	"github.com/konsulhq/konsul/pkg/store"
)

const (
	// Extraction fires once this many turns accumulated since the last run,
	// provided the dialogue has a minimum of total turns.
	extractEveryNMessages = 6
	minMessagesForExtract = 4

	kbEnrichThreshold = 0.3
	reviewThreshold   = 0.7

	extractTimeout = 90 * time.Second
)

// Extractor produces anketas from dialogue. Implemented by
// extraction.Coordinator.
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input) (*models.Anketa, error)
	ExtractInterview(ctx context.Context, in extraction.Input) (*models.InterviewAnketa, error)
}

// InstructionSink is the live realtime-LLM context the bridge exposes.
type InstructionSink interface {
	SetInstructions(ctx context.Context, instructions string) error
	Announce(ctx context.Context, text string) error
}

// RuntimeSetter advertises the transient session phase. Implemented by the
// runtime status cache or by the bridge's HTTP forwarder.
type RuntimeSetter interface {
	Set(sessionID string, status models.RuntimeStatus) error
}

// Notifier delivers the session-finalized event. A nil Notifier is valid.
type Notifier interface {
	SessionFinalized(sess *models.Session)
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Store     *store.Store
	Extractor Extractor
	Knowledge *knowledge.Base
	Research  *research.Engine
	Runtime   RuntimeSetter
	Sink      InstructionSink
	Notifier  Notifier

	// BasePrompt is the consultant system prompt enrichment is appended to.
	BasePrompt string

	// OutputDir, when set, receives a versioned Markdown copy of the final
	// anketa alongside the database record.
	OutputDir string
}

// Orchestrator is the per-session controller. Methods are safe for
// concurrent use; background work is tracked so Finalize can drain it.
type Orchestrator struct {
	sessionID        string
	consultationType string
	deps             Deps
	logger           *slog.Logger

	mu               sync.Mutex
	history          []models.DialogueTurn
	durationSeconds  float64
	sinceLastExtract int
	extracting       bool
	extractPending   bool
	kbEnriched       bool
	reviewStarted    bool
	researchDone     bool
	finalized        bool
	countryHint      postprocess.CountryHint
	lastAnketa       *models.Anketa
	docContext       *models.DocumentContext

	wg sync.WaitGroup
}

// New creates an orchestrator for one session, seeding in-memory state from
// the persisted record when one exists.
func New(ctx context.Context, sessionID string, deps Deps) *Orchestrator {
	o := &Orchestrator{
		sessionID: sessionID,
		deps:      deps,
		logger:    slog.With("component", "orchestrator", "session_id", sessionID),
	}

	sess, err := deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		o.logger.Warn("No persisted session, running standalone", "error", err)
		return o
	}

	o.history = append(o.history, sess.DialogueHistory...)
	o.durationSeconds = sess.DurationSeconds
	o.lastAnketa = sess.AnketaData
	o.docContext = sess.DocumentContext
	if sess.VoiceConfig != nil {
		o.consultationType = sess.VoiceConfig.ConsultationType
	}
	return o
}

// ConsultationType returns the routing mode cached from voice_config.
func (o *Orchestrator) ConsultationType() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.consultationType
}

// OnTurn handles one appended dialogue turn: persist, count, and trigger a
// background extraction when the counter gate opens.
func (o *Orchestrator) OnTurn(ctx context.Context, turn models.DialogueTurn, durationSeconds float64) {
	o.mu.Lock()
	o.history = append(o.history, turn)
	if durationSeconds > o.durationSeconds {
		o.durationSeconds = durationSeconds
	}
	o.sinceLastExtract++

	if o.countryHint.Country == "" {
		// The turn text carries more digits than the number; the dialogue
		// extractor isolates the phone before deriving the prefix.
		if hint := postprocess.CountryHintFromDialogue([]models.DialogueTurn{turn}); hint.Country != "" {
			o.countryHint = hint
			o.logger.Info("Country detected from dialogue", "country", hint.Country)
		}
	}

	history := copyTurns(o.history)
	duration := o.durationSeconds
	shouldExtract := o.sinceLastExtract >= extractEveryNMessages &&
		len(o.history) >= minMessagesForExtract
	o.mu.Unlock()

	if err := o.deps.Store.UpdateDialogue(ctx, o.sessionID, history, duration, ""); err != nil {
		// Next tick rewrites the full history, so no retry here.
		o.logger.Error("Dialogue persist failed", "error", err)
	}

	if shouldExtract {
		o.triggerExtraction()
	}
}

// OnDocumentContext reacts to freshly analyzed documents: stash the context
// and extract immediately, skipping the counter gate.
func (o *Orchestrator) OnDocumentContext(ctx context.Context, dc *models.DocumentContext) {
	o.mu.Lock()
	o.docContext = dc
	o.mu.Unlock()

	if o.deps.Sink != nil {
		if err := o.deps.Sink.Announce(ctx, "Клиент загрузил материалы о компании, учитывай их в разговоре."); err != nil {
			o.logger.Warn("Document announcement failed", "error", err)
		}
	}
	o.triggerExtraction()
}

// triggerExtraction starts a background extraction, coalescing on the
// trailing edge: at most one in flight, one pending.
func (o *Orchestrator) triggerExtraction() {
	o.mu.Lock()
	if o.finalized {
		o.mu.Unlock()
		return
	}
	if o.extracting {
		o.extractPending = true
		o.mu.Unlock()
		return
	}
	o.extracting = true
	o.sinceLastExtract = 0
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runExtraction()

		o.mu.Lock()
		o.extracting = false
		rerun := o.extractPending && !o.finalized
		o.extractPending = false
		o.mu.Unlock()

		if rerun {
			o.triggerExtraction()
		}
	}()
}

func (o *Orchestrator) runExtraction() {
	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	o.setRuntime(models.RuntimeProcessing)
	defer o.setRuntime(models.RuntimeIdle)

	in := o.extractionInput()

	if o.ConsultationType() == models.ConsultationTypeInterview {
		o.runInterviewExtraction(ctx, in)
		return
	}

	anketa, err := o.deps.Extractor.Extract(ctx, in)
	if err != nil {
		// anketa is the fallback; still useful to persist for the poller.
		o.logger.Warn("Extraction degraded to fallback", "error", err)
	}

	md := export.RenderMarkdown(anketa, "")
	if err := o.deps.Store.UpdateAnketa(ctx, o.sessionID, anketa, md); err != nil {
		o.logger.Error("Anketa persist failed", "error", err)
	}

	o.mu.Lock()
	o.lastAnketa = anketa
	o.mu.Unlock()

	rate := anketa.CompletionRate()
	o.logger.Info("Extraction complete", "completion_rate", fmt.Sprintf("%.2f", rate))

	o.maybeEnrichKnowledge(ctx, anketa, rate)
	o.maybeLaunchResearch(anketa)
	o.maybeStartReview(ctx, anketa, rate)
}

func (o *Orchestrator) runInterviewExtraction(ctx context.Context, in extraction.Input) {
	ia, err := o.deps.Extractor.ExtractInterview(ctx, in)
	if err != nil {
		o.logger.Warn("Interview extraction failed", "error", err)
		return
	}
	md := export.RenderInterviewMarkdown(ia)
	if err := o.deps.Store.UpdateInterviewAnketa(ctx, o.sessionID, ia, md); err != nil {
		o.logger.Error("Interview anketa persist failed", "error", err)
	}
}

func (o *Orchestrator) extractionInput() extraction.Input {
	o.mu.Lock()
	defer o.mu.Unlock()
	return extraction.Input{
		Dialogue:        copyTurns(o.history),
		DurationSeconds: o.durationSeconds,
		DocumentContext: o.docContext,
		Prior:           o.lastAnketa,
		CountryHint:     o.countryHint,
	}
}

// maybeEnrichKnowledge performs the once-only KB injection when the anketa
// has revealed a confident industry.
func (o *Orchestrator) maybeEnrichKnowledge(ctx context.Context, anketa *models.Anketa, rate float64) {
	o.mu.Lock()
	already := o.kbEnriched
	o.mu.Unlock()
	if already || rate < kbEnrichThreshold || o.deps.Sink == nil {
		return
	}

	industry := knowledge.DetectIndustryFrom(anketa.Industry, anketa.CompanyName, anketa.Services)
	if industry == "" {
		return
	}

	blob, err := o.deps.Knowledge.Enrichment(ctx, industry)
	if err != nil || blob == "" {
		if err != nil {
			o.logger.Warn("KB enrichment fetch failed", "industry", industry, "error", err)
		}
		return
	}

	if err := o.deps.Sink.SetInstructions(ctx, o.deps.BasePrompt+"\n\n"+blob); err != nil {
		o.logger.Warn("KB instruction update failed", "error", err)
		return
	}

	o.deps.Knowledge.UpdateMetrics(industry, rate)

	o.mu.Lock()
	o.kbEnriched = true
	o.mu.Unlock()
	o.logger.Info("Knowledge enrichment installed", "industry", industry)
}

// maybeLaunchResearch fires the once-only background research task when the
// anketa carries enough identity to search on.
func (o *Orchestrator) maybeLaunchResearch(anketa *models.Anketa) {
	o.mu.Lock()
	already := o.researchDone
	if !already {
		ready := anketa.Website != "" || (anketa.CompanyName != "" && anketa.Industry != "")
		if !ready {
			o.mu.Unlock()
			return
		}
		o.researchDone = true
	}
	o.mu.Unlock()
	if already || o.deps.Research == nil {
		return
	}

	query := research.Query{
		CompanyName: anketa.CompanyName,
		Industry:    anketa.Industry,
		Website:     anketa.Website,
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()

		notes := o.deps.Research.Run(ctx, query)
		if notes == "" {
			return
		}

		o.mu.Lock()
		dc := o.docContext
		if dc == nil {
			dc = &models.DocumentContext{}
			o.docContext = dc
		}
		dc.ResearchNotes = notes
		o.mu.Unlock()

		if err := o.deps.Store.UpdateDocumentContext(ctx, o.sessionID, dc); err != nil {
			o.logger.Error("Research persist failed", "error", err)
			return
		}
		o.logger.Info("Research notes attached", "bytes", len(notes))
	}()
}

// maybeStartReview switches the live agent into the read-back phase once
// the anketa is sufficiently complete.
func (o *Orchestrator) maybeStartReview(ctx context.Context, anketa *models.Anketa, rate float64) {
	o.mu.Lock()
	already := o.reviewStarted
	o.mu.Unlock()
	if already || rate < reviewThreshold || o.deps.Sink == nil {
		return
	}

	if err := o.deps.Sink.SetInstructions(ctx, reviewPrompt(anketa)); err != nil {
		o.logger.Warn("Review instruction update failed", "error", err)
		return
	}

	o.mu.Lock()
	o.reviewStarted = true
	o.mu.Unlock()
	o.setRuntime(models.RuntimeCompleting)
	o.logger.Info("Review phase started", "completion_rate", fmt.Sprintf("%.2f", rate))
}

// FinalizeAndSave runs the final extraction, persists the result, renders
// the Markdown, moves the session into review and notifies collaborators.
// Safe to call once; later calls are no-ops.
func (o *Orchestrator) FinalizeAndSave(ctx context.Context) error {
	o.mu.Lock()
	if o.finalized {
		o.mu.Unlock()
		return nil
	}
	o.finalized = true
	o.mu.Unlock()

	o.wg.Wait() // drain in-flight extraction and research

	o.setRuntime(models.RuntimeCompleting)

	in := o.extractionInput()
	if o.ConsultationType() == models.ConsultationTypeInterview {
		return o.finalizeInterview(ctx, in)
	}

	anketa, err := o.deps.Extractor.Extract(ctx, in)
	if err != nil {
		// Keep the last known-good anketa instead of the fallback.
		o.logger.Warn("Final extraction failed, retaining previous anketa", "error", err)
		o.mu.Lock()
		if o.lastAnketa != nil {
			anketa = o.lastAnketa
		}
		o.mu.Unlock()
	}

	md := export.RenderMarkdown(anketa, "")
	if err := o.deps.Store.UpdateAnketa(ctx, o.sessionID, anketa, md); err != nil {
		o.logger.Error("Final anketa persist failed", "error", err)
	}
	o.writeOutputDir(ctx, export.OutputBundle{
		CompanyName: anketa.CompanyName,
		Markdown:    md,
		Anketa:      anketa,
	})

	if anketa.CompanyName != "" || anketa.ContactName != "" {
		var company, contact *string
		if anketa.CompanyName != "" {
			company = &anketa.CompanyName
		}
		if anketa.ContactName != "" {
			contact = &anketa.ContactName
		}
		if err := o.deps.Store.UpdateMetadata(ctx, o.sessionID, company, contact); err != nil {
			o.logger.Error("Metadata update failed", "error", err)
		}
	}

	o.transitionToReviewing(ctx)
	o.notifyFinalized(ctx)
	o.setRuntime(models.RuntimeCompleted)
	return nil
}

func (o *Orchestrator) finalizeInterview(ctx context.Context, in extraction.Input) error {
	ia, err := o.deps.Extractor.ExtractInterview(ctx, in)
	if err != nil {
		o.logger.Warn("Final interview extraction failed", "error", err)
	} else {
		md := export.RenderInterviewMarkdown(ia)
		if err := o.deps.Store.UpdateInterviewAnketa(ctx, o.sessionID, ia, md); err != nil {
			o.logger.Error("Final interview persist failed", "error", err)
		}
		o.writeOutputDir(ctx, export.OutputBundle{
			CompanyName: ia.CompanyName,
			Markdown:    md,
			Anketa:      ia,
		})
	}

	o.transitionToReviewing(ctx)
	o.notifyFinalized(ctx)
	o.setRuntime(models.RuntimeCompleted)
	return nil
}

// writeOutputDir mirrors the final anketa into a versioned directory under
// deps.OutputDir. Failures are logged, not fatal: the database copy is the
// source of truth.
func (o *Orchestrator) writeOutputDir(ctx context.Context, bundle export.OutputBundle) {
	if o.deps.OutputDir == "" || bundle.Markdown == "" {
		return
	}
	o.mu.Lock()
	bundle.Dialogue = copyTurns(o.history)
	o.mu.Unlock()

	dir, err := export.SaveToOutputDir(o.deps.OutputDir, bundle)
	if err != nil {
		o.logger.Error("Output dir write failed", "error", err)
		return
	}
	if err := o.deps.Store.UpdateOutputDir(ctx, o.sessionID, dir); err != nil {
		o.logger.Error("Output dir persist failed", "error", err)
		return
	}
	o.logger.Info("Anketa exported", "dir", dir)
}

func (o *Orchestrator) transitionToReviewing(ctx context.Context) {
	err := o.deps.Store.UpdateStatus(ctx, o.sessionID, models.StatusReviewing, false)
	if err != nil && !models.IsInvalidTransition(err) {
		o.logger.Error("Status transition to reviewing failed", "error", err)
	}
}

func (o *Orchestrator) notifyFinalized(ctx context.Context) {
	if o.deps.Notifier == nil {
		return
	}
	sess, err := o.deps.Store.GetSession(ctx, o.sessionID)
	if err != nil {
		o.logger.Warn("Notification skipped, session read failed", "error", err)
		return
	}
	go o.deps.Notifier.SessionFinalized(sess)
}

func (o *Orchestrator) setRuntime(status models.RuntimeStatus) {
	if o.deps.Runtime == nil {
		return
	}
	if err := o.deps.Runtime.Set(o.sessionID, status); err != nil {
		o.logger.Warn("Runtime status update failed", "status", status, "error", err)
	}
}

func copyTurns(turns []models.DialogueTurn) []models.DialogueTurn {
	out := make([]models.DialogueTurn, len(turns))
	copy(out, turns)
	return out
}
