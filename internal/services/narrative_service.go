package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NarrativeKind selects the kind of generated commentary.
type NarrativeKind string

const (
	NarrativeSummary       NarrativeKind = "summary"
	NarrativePredictions   NarrativeKind = "predictions"
	NarrativeTrends        NarrativeKind = "trends"
	NarrativeOpportunities NarrativeKind = "opportunities"
)

var narrativeInstructions = map[NarrativeKind]string{
	NarrativeSummary:       "Summarize the key findings of this survey data in three short paragraphs.",
	NarrativePredictions:   "Based on this survey data, list three predictions for the next year.",
	NarrativeTrends:        "Describe the main trends visible across years and countries in this survey data.",
	NarrativeOpportunities: "Identify business and policy opportunities suggested by this survey data.",
}

// ParseNarrativeKind validates a kind supplied by a caller.
func ParseNarrativeKind(s string) (NarrativeKind, error) {
	k := NarrativeKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := narrativeInstructions[k]; !ok {
		return "", NewInvalidError("unknown narrative kind " + s)
	}
	return k, nil
}

type TextRequest struct {
	Prompt    string
	Model     string
	MaxTokens int
}

// TextGenerator produces free text from a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// Narrative is one generated commentary, kept in the requesting user's history.
type Narrative struct {
	ID          string        `json:"id,omitempty"`
	UserID      string        `json:"-"`
	Kind        NarrativeKind `json:"kind"`
	Text        string        `json:"text"`
	DataSources []string      `json:"data_sources"`
	Model       string        `json:"model,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NarrativeStore keeps generated narratives.
type NarrativeStore interface {
	AddNarrative(ctx context.Context, n *Narrative) error
	// ListNarratives returns at most limit narratives of userID, newest first.
	ListNarratives(ctx context.Context, userID string, limit int) ([]*Narrative, error)
}

const NarrativeHistoryLimit = 50

// narrativeSources names the tables a narrative prompt is built from.
var narrativeSources = []string{"survey_responses", "user_verifications"}

type NarrativeService struct {
	analytics *AnalyticsService
	store     NarrativeStore
	gen       TextGenerator
	model     string
	maxTokens int
	now       func() time.Time
	idGen     func() string
}

// NewNarrativeService builds the service. A nil store disables the history.
func NewNarrativeService(analytics *AnalyticsService, store NarrativeStore, gen TextGenerator, model string, maxTokens int) *NarrativeService {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &NarrativeService{
		analytics: analytics,
		store:     store,
		gen:       gen,
		model:     model,
		maxTokens: maxTokens,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
	}
}

// Enabled reports whether a text generator is configured.
func (s *NarrativeService) Enabled() bool { return s != nil && s.gen != nil }

// Generate asks the model for a narrative of kind over the current dashboard
// and records it in userID's history.
func (s *NarrativeService) Generate(ctx context.Context, userID string, kind NarrativeKind) (*Narrative, error) {
	instr, ok := narrativeInstructions[kind]
	if !ok {
		return nil, NewInvalidError("unknown narrative kind " + string(kind))
	}
	if !s.Enabled() {
		return nil, NewInvalidError("ai disabled")
	}
	d, err := s.analytics.Dashboard(ctx, ResponseFilter{})
	if err != nil {
		return nil, err
	}
	prompt := instr + "\n\n" + dataSummary(d)
	text, err := s.gen.GenerateText(ctx, TextRequest{Prompt: prompt, Model: s.model, MaxTokens: s.maxTokens})
	if err != nil {
		return nil, NewBadGatewayError("generate narrative", err)
	}
	n := &Narrative{
		UserID:      userID,
		Kind:        kind,
		Text:        strings.TrimSpace(text),
		DataSources: append([]string(nil), narrativeSources...),
		Model:       s.model,
		CreatedAt:   s.now(),
	}
	if s.store == nil || userID == "" {
		return n, nil
	}
	n.ID = s.idGen()
	if err := s.store.AddNarrative(ctx, n); err != nil {
		return nil, NewStoreUnavailableError("save narrative", err)
	}
	return n, nil
}

// History returns the latest narratives generated for userID.
func (s *NarrativeService) History(ctx context.Context, userID string) ([]*Narrative, error) {
	if userID == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	if s.store == nil {
		return []*Narrative{}, nil
	}
	list, err := s.store.ListNarratives(ctx, userID, NarrativeHistoryLimit)
	if err != nil {
		return nil, NewStoreUnavailableError("list narratives", err)
	}
	if list == nil {
		list = []*Narrative{}
	}
	return list, nil
}

// dataSummary condenses a dashboard into the plain-text context sent to the model.
func dataSummary(d *Dashboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total responses: %d\n", d.TotalResponses)
	fmt.Fprintf(&b, "Unique participants: %d\n", d.Participants)
	if len(d.TopCountries) > 0 {
		parts := make([]string, 0, len(d.TopCountries))
		for _, c := range d.TopCountries {
			parts = append(parts, fmt.Sprintf("%s (%d)", c.Country, c.Count))
		}
		fmt.Fprintf(&b, "Countries: %s\n", strings.Join(parts, ", "))
	}
	if len(d.YearlyTrend) > 0 {
		parts := make([]string, 0, len(d.YearlyTrend))
		for _, y := range d.YearlyTrend {
			parts = append(parts, fmt.Sprintf("%s: %d", y.Label, y.Count))
		}
		fmt.Fprintf(&b, "Responses per year: %s\n", strings.Join(parts, ", "))
	}
	for _, di := range d.Details {
		fmt.Fprintf(&b, "[%s] %s: %s\n", di.Category, di.Question, formatAnswers(di.Answers))
	}
	return b.String()
}

func formatAnswers(rs []OptionResult) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", r.Option, r.Share))
	}
	return strings.Join(parts, ", ")
}
