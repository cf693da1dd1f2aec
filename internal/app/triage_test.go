package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rental_kernel/internal/app"
	"rental_kernel/internal/domain"
)

func TestParseSuggestion(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want domain.TaskSuggestion
	}{
		{"plain json", `{"assignee":"Maintenance","priority":"High","reasoning":"Water damage spreads."}`,
			domain.TaskSuggestion{Assignee: "Maintenance", Priority: domain.PriorityHigh, Reasoning: "Water damage spreads."}},
		{"fenced", "```json\n{\"assignee\":\"Legal\",\"priority\":\"low\",\"reasoning\":\"r\"}\n```",
			domain.TaskSuggestion{Assignee: "Legal", Priority: domain.PriorityLow, Reasoning: "r"}},
		{"odd priority", `{"assignee":"Security","priority":"urgent!","reasoning":"r"}`,
			domain.TaskSuggestion{Assignee: "Security", Priority: domain.PriorityMedium, Reasoning: "r"}},
		{"not json", "I think maintenance should handle it.",
			domain.TaskSuggestion{Assignee: "Admin", Priority: domain.PriorityMedium, Reasoning: "Analysis failed, defaulted to standard parameters."}},
		{"empty object", `{}`,
			domain.TaskSuggestion{Assignee: "Admin", Priority: domain.PriorityMedium, Reasoning: "Analysis failed, defaulted to standard parameters."}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := app.ParseSuggestion(tc.in); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestTriage_SuggestTask(t *testing.T) {
	ai := &fakeAssistant{text: `{"assignee":"Maintenance","priority":"Critical","reasoning":"Gas smell."}`}
	svc := app.NewTriageService(ai, app.NewState())

	got, err := svc.SuggestTask(context.Background(), "  smell of gas in 201 ")
	if err != nil || got.Priority != domain.PriorityCritical {
		t.Fatalf("unexpected: %+v %v", got, err)
	}
	if ai.got != "smell of gas in 201" {
		t.Fatalf("description not trimmed: %q", ai.got)
	}

	if _, err := svc.SuggestTask(context.Background(), " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	ai.err = errBoom
	if _, err := svc.SuggestTask(context.Background(), "leak"); !errors.Is(err, domain.ErrAssistantUnavailable) || !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped ErrAssistantUnavailable, got %v", err)
	}
}

func TestTriage_NoAssistantConfigured(t *testing.T) {
	svc := app.NewTriageService(nil, app.NewState())
	if _, err := svc.SuggestTask(context.Background(), "leak"); !errors.Is(err, domain.ErrAssistantUnavailable) {
		t.Fatalf("expected ErrAssistantUnavailable, got %v", err)
	}
	if _, err := svc.AnalyzeMaintenance(context.Background(), "leak", nil); !errors.Is(err, domain.ErrAssistantUnavailable) {
		t.Fatalf("expected ErrAssistantUnavailable, got %v", err)
	}
}

func TestTriage_AnalyzeMaintenance(t *testing.T) {
	ai := &fakeAssistant{text: ""}
	svc := app.NewTriageService(ai, app.NewState())
	img := &domain.Image{MimeType: "image/png", Data: []byte{1}}

	got, err := svc.AnalyzeMaintenance(context.Background(), "cracked tile", img)
	if err != nil || got != "Unable to analyze request." {
		t.Fatalf("unexpected: %q %v", got, err)
	}
	if ai.img != img {
		t.Fatalf("image not forwarded")
	}
	if _, err := svc.AnalyzeMaintenance(context.Background(), "", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTriage_DraftReminder(t *testing.T) {
	st := app.NewState()
	st.Replace(sampleDataset(), app.SourceRemote, time.Now())
	ai := &fakeAssistant{text: "Dear tenant of room 101..."}
	svc := app.NewTriageService(ai, st)

	got, err := svc.DraftReminder(context.Background(), "INV-2")
	if err != nil || got == "" || ai.inv.ID != "INV-2" {
		t.Fatalf("unexpected: %q %v %+v", got, err, ai.inv)
	}
	if _, err := svc.DraftReminder(context.Background(), "INV-1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("paid invoices get no reminder, got %v", err)
	}
	if _, err := svc.DraftReminder(context.Background(), "INV-404"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTriage_DraftLease(t *testing.T) {
	st := app.NewState()
	st.Replace(sampleDataset(), app.SourceRemote, time.Now())
	ai := &fakeAssistant{text: "RENTAL AGREEMENT\nRoom 101..."}
	svc := app.NewTriageService(ai, st)

	got, err := svc.DraftLease(context.Background(), "T1")
	if err != nil || !strings.HasPrefix(got, "RENTAL AGREEMENT") || ai.ten.Name != "Somchai" {
		t.Fatalf("unexpected: %q %v %+v", got, err, ai.ten)
	}
	if _, err := svc.DraftLease(context.Background(), "T404"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	ai.text = "  "
	if _, err := svc.DraftLease(context.Background(), "T1"); !errors.Is(err, domain.ErrAssistantUnavailable) {
		t.Fatalf("blank agreement: expected ErrAssistantUnavailable, got %v", err)
	}
	ai.err = errBoom
	if _, err := svc.DraftLease(context.Background(), "T1"); !errors.Is(err, domain.ErrAssistantUnavailable) || !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped ErrAssistantUnavailable, got %v", err)
	}

	if _, err := app.NewTriageService(nil, st).DraftLease(context.Background(), "T1"); !errors.Is(err, domain.ErrAssistantUnavailable) {
		t.Fatalf("no assistant: expected ErrAssistantUnavailable, got %v", err)
	}
}
