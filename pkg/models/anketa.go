package models

// Schema defaults applied when the extractor leaves a voice field empty.
// Defaulted fields do not count as filled for the completion rate.
const (
	DefaultVoiceGender   = "female"
	DefaultVoiceTone     = "professional"
	DefaultCallDirection = "inbound"
)

// AgentFunction describes one capability of the future voice agent.
type AgentFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"` // high, medium, low
}

// Integration names an external system the agent must talk to.
type Integration struct {
	Name     string `json:"name"`
	Purpose  string `json:"purpose,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// FAQItem is a generated question/answer pair.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ObjectionHandler pairs a customer objection with a suggested response.
type ObjectionHandler struct {
	Objection string `json:"objection"`
	Response  string `json:"response"`
}

// DialogueExample is one line of a sample bot/client conversation.
type DialogueExample struct {
	Role    string `json:"role"` // bot, client
	Message string `json:"message"`
	Intent  string `json:"intent,omitempty"`
}

// EscalationRule defines when a call must be handed to a human.
type EscalationRule struct {
	Trigger string `json:"trigger"`
	Urgency string `json:"urgency,omitempty"` // immediate, hour, day
	Action  string `json:"action,omitempty"`
}

// AIRecommendation is an improvement suggestion produced during extraction.
type AIRecommendation struct {
	Recommendation string `json:"recommendation"`
	Impact         string `json:"impact,omitempty"`
	Priority       string `json:"priority,omitempty"`
	Effort         string `json:"effort,omitempty"`
}

// FinancialMetrics holds rough economics captured during the consultation.
type FinancialMetrics struct {
	AverageCheck      string `json:"average_check,omitempty"`
	MonthlyLeads      string `json:"monthly_leads,omitempty"`
	ConversionRate    string `json:"conversion_rate,omitempty"`
	CallVolumePerDay  string `json:"call_volume_per_day,omitempty"`
	EstimatedSavings  string `json:"estimated_savings,omitempty"`
	Currency          string `json:"currency,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

// Anketa is the structured questionnaire extracted from the consultation.
// It is persisted as JSON in the anketa_data column and is the system's
// principal deliverable.
type Anketa struct {
	// Identity and contacts.
	CompanyName  string `json:"company_name,omitempty"`
	Industry     string `json:"industry,omitempty"`
	Website      string `json:"website,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`

	// Business context.
	BusinessDescription string   `json:"business_description,omitempty"`
	TargetAudience      string   `json:"target_audience,omitempty"`
	Services            []string `json:"services,omitempty"`
	PricingInfo         string   `json:"pricing_info,omitempty"`
	WorkingHours        string   `json:"working_hours,omitempty"`
	ProposedSolution    string   `json:"proposed_solution,omitempty"`

	// Voice-agent parameters.
	VoiceGender   string `json:"voice_gender,omitempty"`
	VoiceTone     string `json:"voice_tone,omitempty"`
	CallDirection string `json:"call_direction,omitempty"`
	Language      string `json:"language,omitempty"`

	// Agent capabilities.
	MainAgentFunctions       []AgentFunction `json:"main_agent_functions,omitempty"`
	AdditionalAgentFunctions []AgentFunction `json:"additional_agent_functions,omitempty"`
	Integrations             []Integration   `json:"integrations,omitempty"`

	// AI-enriched sections.
	FAQ               []FAQItem          `json:"faq,omitempty"`
	ObjectionHandlers []ObjectionHandler `json:"objection_handlers,omitempty"`
	SampleDialogue    []DialogueExample  `json:"sample_dialogue,omitempty"`
	FinancialMetrics  *FinancialMetrics  `json:"financial_metrics,omitempty"`
	Competitors       []string           `json:"competitors,omitempty"`
	MarketInsights    []string           `json:"market_insights,omitempty"`
	CustomerSegments  []string           `json:"customer_segments,omitempty"`
	EscalationRules   []EscalationRule   `json:"escalation_rules,omitempty"`
	KPIs              []string           `json:"kpis,omitempty"`
	LaunchChecklist   []string           `json:"launch_checklist,omitempty"`
	AIRecommendations []AIRecommendation `json:"ai_recommendations,omitempty"`
	ToneOfVoice       string             `json:"tone_of_voice,omitempty"`
	ErrorScripts      []string           `json:"error_scripts,omitempty"`
	FollowUpSequence  []string           `json:"follow_up_sequence,omitempty"`

	ConsultationDurationSeconds float64 `json:"consultation_duration_seconds,omitempty"`
}

// QAPair is one question/answer of an interview-mode consultation.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Topic    string `json:"topic,omitempty"`
}

// InterviewAnketa is the alternate extraction shape for interview-type
// consultations. It shares identity and metadata fields with Anketa but is
// centred on Q&A pairs instead of the voice-agent blueprint.
type InterviewAnketa struct {
	CompanyName                 string   `json:"company_name,omitempty"`
	ContactName                 string   `json:"contact_name,omitempty"`
	Position                    string   `json:"position,omitempty"`
	QAPairs                     []QAPair `json:"qa_pairs,omitempty"`
	Insights                    []string `json:"insights,omitempty"`
	Summary                     string   `json:"summary,omitempty"`
	ConsultationDurationSeconds float64  `json:"consultation_duration_seconds,omitempty"`
}

// ApplyDefaults fills the three schema-default voice fields when empty.
func (a *Anketa) ApplyDefaults() {
	if a.VoiceGender == "" {
		a.VoiceGender = DefaultVoiceGender
	}
	if a.VoiceTone == "" {
		a.VoiceTone = DefaultVoiceTone
	}
	if a.CallDirection == "" {
		a.CallDirection = DefaultCallDirection
	}
}

// CompletionRate computes the fraction of the fixed 15-field required set
// that carries a non-empty, non-default value. Fields still at their schema
// default are excluded from both numerator and denominator, keeping the
// achievable ceiling at 1.0.
func (a *Anketa) CompletionRate() float64 {
	if a == nil {
		return 0
	}

	type field struct {
		filled    bool
		defaulted bool
	}

	fields := []field{
		{filled: a.CompanyName != ""},
		{filled: a.Industry != ""},
		{filled: a.BusinessDescription != ""},
		{filled: a.ContactName != ""},
		{filled: a.ContactPhone != ""},
		{filled: a.TargetAudience != ""},
		{filled: len(a.Services) > 0},
		{filled: len(a.MainAgentFunctions) > 0},
		{filled: len(a.Integrations) > 0},
		{filled: a.WorkingHours != ""},
		{filled: a.Website != ""},
		{filled: a.PricingInfo != ""},
		{
			filled:    a.VoiceGender != "" && a.VoiceGender != DefaultVoiceGender,
			defaulted: a.VoiceGender == "" || a.VoiceGender == DefaultVoiceGender,
		},
		{
			filled:    a.VoiceTone != "" && a.VoiceTone != DefaultVoiceTone,
			defaulted: a.VoiceTone == "" || a.VoiceTone == DefaultVoiceTone,
		},
		{
			filled:    a.CallDirection != "" && a.CallDirection != DefaultCallDirection,
			defaulted: a.CallDirection == "" || a.CallDirection == DefaultCallDirection,
		},
	}

	filled, defaulted := 0, 0
	for _, f := range fields {
		if f.filled {
			filled++
		} else if f.defaulted {
			defaulted++
		}
	}

	denom := len(fields) - defaulted
	if denom <= 0 {
		return 0
	}
	rate := float64(filled) / float64(denom)
	if rate > 1 {
		rate = 1
	}
	return rate
}
