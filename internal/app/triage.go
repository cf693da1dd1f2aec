package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"rental_kernel/internal/domain"
)

var defaultSuggestion = domain.TaskSuggestion{
	Assignee:  "Admin",
	Priority:  domain.PriorityMedium,
	Reasoning: "Analysis failed, defaulted to standard parameters.",
}

// TriageService wraps the AI collaborator. Without one configured every
// call reports ErrAssistantUnavailable and tasks are entered by hand.
type TriageService struct {
	ai    domain.Assistant
	state *State
}

func NewTriageService(ai domain.Assistant, st *State) *TriageService {
	return &TriageService{ai: ai, state: st}
}

func (s *TriageService) SuggestTask(ctx context.Context, description string) (domain.TaskSuggestion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.TaskSuggestion{}, &domain.ValidationError{Fields: map[string]string{"description": "required"}}
	}
	if s.ai == nil {
		return domain.TaskSuggestion{}, domain.ErrAssistantUnavailable
	}
	text, err := s.ai.SuggestTask(ctx, description)
	if err != nil {
		return domain.TaskSuggestion{}, fmt.Errorf("%w: %w", domain.ErrAssistantUnavailable, err)
	}
	return ParseSuggestion(text), nil
}

// ParseSuggestion reads the model's JSON answer. Anything unusable yields
// the default suggestion.
func ParseSuggestion(text string) domain.TaskSuggestion {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	var out domain.TaskSuggestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		log.Debug().Err(err).Msg("unparseable suggestion")
		return defaultSuggestion
	}
	out.Assignee = strings.TrimSpace(out.Assignee)
	if out.Assignee == "" {
		return defaultSuggestion
	}
	switch p := domain.NormalizePriority(string(out.Priority)); p {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityCritical:
		out.Priority = p
	default:
		out.Priority = domain.PriorityMedium
	}
	return out
}

func (s *TriageService) AnalyzeMaintenance(ctx context.Context, description string, img *domain.Image) (string, error) {
	if strings.TrimSpace(description) == "" && img == nil {
		return "", &domain.ValidationError{Fields: map[string]string{"description": "required"}}
	}
	if s.ai == nil {
		return "", domain.ErrAssistantUnavailable
	}
	text, err := s.ai.AnalyzeMaintenance(ctx, description, img)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrAssistantUnavailable, err)
	}
	if strings.TrimSpace(text) == "" {
		return "Unable to analyze request.", nil
	}
	return text, nil
}

// DraftLease writes a short-form rental agreement from a tenant's record.
func (s *TriageService) DraftLease(ctx context.Context, tenantID string) (string, error) {
	t, ok := s.state.FindTenant(tenantID)
	if !ok {
		return "", fmt.Errorf("tenant %s: %w", tenantID, domain.ErrNotFound)
	}
	if s.ai == nil {
		return "", domain.ErrAssistantUnavailable
	}
	text, err := s.ai.DraftLeaseAgreement(ctx, t)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrAssistantUnavailable, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty agreement", domain.ErrAssistantUnavailable)
	}
	return text, nil
}

// DraftReminder writes a payment reminder for an unpaid invoice.
func (s *TriageService) DraftReminder(ctx context.Context, invoiceID string) (string, error) {
	inv, ok := s.state.FindInvoice(invoiceID)
	if !ok {
		return "", fmt.Errorf("invoice %s: %w", invoiceID, domain.ErrNotFound)
	}
	if inv.Status == domain.InvoicePaid {
		return "", &domain.ValidationError{Fields: map[string]string{"status": "paid"}}
	}
	if s.ai == nil {
		return "", domain.ErrAssistantUnavailable
	}
	text, err := s.ai.DraftPaymentReminder(ctx, inv)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrAssistantUnavailable, err)
	}
	return text, nil
}
