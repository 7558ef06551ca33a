// Package extraction turns dialogue history and document context into a
// canonical anketa by prompting the chat LLM and post-processing its output.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/konsulhq/konsul/pkg/llm"
	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/postprocess"
)

const (
	extractionTemperature = 0.1
	extractionMaxTokens   = 8192
)

// Input carries everything one extraction run needs.
type Input struct {
	Dialogue        []models.DialogueTurn
	DurationSeconds float64
	DocumentContext *models.DocumentContext
	Prior           *models.Anketa
	CountryHint     postprocess.CountryHint
}

// Coordinator runs extraction calls against the chat LLM.
type Coordinator struct {
	chat   llm.ChatClient
	logger *slog.Logger
}

// New creates a Coordinator.
func New(chat llm.ChatClient) *Coordinator {
	return &Coordinator{chat: chat, logger: slog.With("component", "extraction")}
}

// Extract produces a canonical anketa from the input. The returned anketa is
// never nil: on LLM or parse failure a fallback built from the prior anketa
// and the dialogue is returned alongside the error.
func (c *Coordinator) Extract(ctx context.Context, in Input) (*models.Anketa, error) {
	raw, err := c.chat.Complete(ctx, llm.CompletionRequest{
		System:      extractionSystemPrompt,
		User:        buildUserPrompt(in),
		Temperature: extractionTemperature,
		MaxTokens:   extractionMaxTokens,
	})
	if err != nil {
		c.logger.Error("Extraction LLM call failed, using fallback", "error", err)
		return c.fallback(in), fmt.Errorf("extraction llm call: %w", err)
	}

	parsed, err := postprocess.Repair(raw)
	if err != nil {
		c.logger.Error("Extraction response unparseable, using fallback", "error", err)
		return c.fallback(in), fmt.Errorf("extraction parse: %w", err)
	}

	anketa, err := mapAnketa(parsed)
	if err != nil {
		c.logger.Error("Extraction response unmappable, using fallback", "error", err)
		return c.fallback(in), fmt.Errorf("extraction map: %w", err)
	}

	clean(anketa)
	fillFromDialogue(anketa, in.Dialogue)
	anketa.ApplyDefaults()
	anketa.ConsultationDurationSeconds = in.DurationSeconds
	return anketa, nil
}

// ExtractInterview is the interview-mode alternate: Q&A pairs, insights and
// a summary instead of the voice-agent blueprint.
func (c *Coordinator) ExtractInterview(ctx context.Context, in Input) (*models.InterviewAnketa, error) {
	raw, err := c.chat.Complete(ctx, llm.CompletionRequest{
		System:      interviewSystemPrompt,
		User:        buildUserPrompt(in),
		Temperature: extractionTemperature,
		MaxTokens:   extractionMaxTokens,
	})
	if err != nil {
		return &models.InterviewAnketa{ConsultationDurationSeconds: in.DurationSeconds},
			fmt.Errorf("interview llm call: %w", err)
	}

	parsed, err := postprocess.Repair(raw)
	if err != nil {
		return &models.InterviewAnketa{ConsultationDurationSeconds: in.DurationSeconds},
			fmt.Errorf("interview parse: %w", err)
	}

	var out models.InterviewAnketa
	if err := remarshal(parsed, &out); err != nil {
		return &models.InterviewAnketa{ConsultationDurationSeconds: in.DurationSeconds},
			fmt.Errorf("interview map: %w", err)
	}

	out.CompanyName = postprocess.CleanString(out.CompanyName)
	out.ContactName = postprocess.CleanString(out.ContactName)
	out.Insights = postprocess.CleanList(out.Insights)
	out.ConsultationDurationSeconds = in.DurationSeconds
	return &out, nil
}

// mapAnketa converts the repaired JSON object into the typed schema,
// dropping fields whose shape does not match.
func mapAnketa(raw map[string]any) (*models.Anketa, error) {
	var out models.Anketa
	if err := remarshal(raw, &out); err != nil {
		// Per-field salvage: keep well-typed fields, drop the rest.
		salvaged := make(map[string]any, len(raw))
		for k, v := range raw {
			probe := map[string]any{k: v}
			var tmp models.Anketa
			if remarshal(probe, &tmp) == nil {
				salvaged[k] = v
			}
		}
		if err := remarshal(salvaged, &out); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func remarshal(in any, out any) error {
	buf, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

// clean strips leaked dialogue markers from free-text fields.
func clean(a *models.Anketa) {
	a.CompanyName = postprocess.CleanString(a.CompanyName)
	a.Industry = postprocess.CleanString(a.Industry)
	a.ContactName = postprocess.CleanString(a.ContactName)
	a.BusinessDescription = postprocess.CleanString(a.BusinessDescription)
	a.TargetAudience = postprocess.CleanString(a.TargetAudience)
	a.PricingInfo = postprocess.CleanString(a.PricingInfo)
	a.WorkingHours = postprocess.CleanString(a.WorkingHours)
	a.ProposedSolution = postprocess.CleanString(a.ProposedSolution)

	a.Services = postprocess.CleanList(a.Services)
	a.Competitors = postprocess.CleanList(a.Competitors)
	a.MarketInsights = postprocess.CleanList(a.MarketInsights)
	a.CustomerSegments = postprocess.CleanList(a.CustomerSegments)
	a.KPIs = postprocess.CleanList(a.KPIs)
	a.LaunchChecklist = postprocess.CleanList(a.LaunchChecklist)
	a.ErrorScripts = postprocess.CleanList(a.ErrorScripts)
	a.FollowUpSequence = postprocess.CleanList(a.FollowUpSequence)
}

// fillFromDialogue recovers contact fields the model omitted via role-based
// heuristics; canonical values always win.
func fillFromDialogue(a *models.Anketa, turns []models.DialogueTurn) {
	if a.CompanyName == "" {
		a.CompanyName = postprocess.CompanyNameFromDialogue(turns).Value
	}
	if a.ContactName == "" {
		a.ContactName = postprocess.ContactNameFromDialogue(turns).Value
	}
	if a.ContactPhone == "" {
		a.ContactPhone = postprocess.ContactPhoneFromDialogue(turns).Value
	}
	if a.ContactEmail == "" {
		a.ContactEmail = postprocess.EmailFromDialogue(turns).Value
	}
	if a.Website == "" {
		a.Website = postprocess.WebsiteFromDialogue(turns).Value
	}
}

// fallback builds the degraded-mode anketa: prior identity plus any
// proposed-solution fragments recoverable from the transcript.
func (c *Coordinator) fallback(in Input) *models.Anketa {
	out := &models.Anketa{}
	if in.Prior != nil {
		out.CompanyName = in.Prior.CompanyName
		out.Industry = in.Prior.Industry
	}

	if fragment := proposedSolutionFragment(in.Dialogue); fragment != "" {
		out.ProposedSolution = fragment
	}

	fillFromDialogue(out, in.Dialogue)
	out.ApplyDefaults()
	out.ConsultationDurationSeconds = in.DurationSeconds
	return out
}

var solutionCues = []string{
	"предлага", "решение", "голосовой агент", "бот будет", "агент будет",
	"solution", "proposal", "the agent will",
}

// proposedSolutionFragment pulls the last assistant turn that reads like a
// solution pitch.
func proposedSolutionFragment(turns []models.DialogueTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != models.RoleAssistant {
			continue
		}
		content := strings.TrimSpace(turns[i].Content)
		lower := strings.ToLower(content)
		for _, cue := range solutionCues {
			if strings.Contains(lower, cue) {
				return content
			}
		}
	}
	return ""
}
