package genai

import (
	"fmt"

	"rental_kernel/internal/domain"
)

const systemInstruction = `You are the property management assistant for a small rental building.
You help manage rental rooms, tenants and maintenance.
Analyze maintenance reports (images and text) and suggest costs and priorities.
Draft professional responses and reminders for tenants.
Use a formal yet helpful tone. For maintenance photos, identify specific issues like water leaks or electrical faults.`

func suggestPrompt(description string) string {
	return fmt.Sprintf(`Analyze this property management task: %q.
Suggest:
1. An assignee category (Maintenance, Admin, Legal, or Security).
2. A priority level (Low, Medium, High, or Critical).
3. A brief 1-sentence reasoning.`, description)
}

func maintenancePrompt(description string) string {
	return fmt.Sprintf(`Analyze this maintenance request for a rental property.
Description: %s

Please provide:
1. A summary of the likely technical issue.
2. Estimated repair cost range in THB.
3. Urgency priority (Low, Medium, High, Critical).
4. Recommendation for immediate action.`, description)
}

func reminderPrompt(inv domain.Invoice) string {
	return fmt.Sprintf(`Draft a polite but firm payment reminder for an unpaid invoice.
Room: %s, Month: %s, Amount: %s THB, Status: %s.`, inv.RoomNumber, inv.Month, inv.Amount.StringFixed(2), inv.Status)
}

func leasePrompt(t domain.Tenant) string {
	deposit := "not recorded"
	if t.DepositAmount != nil {
		deposit = t.DepositAmount.StringFixed(2) + " THB"
	}
	period := t.ContractPeriod
	if period == "" {
		period = "not recorded"
	}
	return fmt.Sprintf(`Draft a professional short-form rental agreement based on these details:
Tenant: %s, Room: %s, Move-in date: %s, Contract period: %s, Deposit: %s.`,
		t.Name, t.RoomNumber, t.EntryDate, period, deposit)
}

// suggestionSchema constrains SuggestTask answers to {assignee, priority, reasoning}.
var suggestionSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"assignee":  map[string]any{"type": "STRING"},
		"priority":  map[string]any{"type": "STRING"},
		"reasoning": map[string]any{"type": "STRING"},
	},
	"required": []string{"assignee", "priority", "reasoning"},
}
