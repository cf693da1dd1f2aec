package domain

import "context"

// SheetBackend is the remote spreadsheet reached through the script endpoint.
type SheetBackend interface {
	// GetDataset returns the raw decoded top-level object.
	GetDataset(ctx context.Context) (map[string]any, error)
	// Send dispatches one {action, data} command. At most one attempt.
	Send(ctx context.Context, action Action, data any) (MutationResult, error)
}

type Action string

const (
	ActionAddBooking    Action = "addBooking"
	ActionUpdateBooking Action = "updateBooking"
	ActionUpdateTenant  Action = "updateTenant"
	ActionAddInvoice    Action = "addInvoice"
)

// MutationResult reports whether the backend confirmed the write. In
// fire-and-forget mode Confirmed is always false.
type MutationResult struct {
	Action    Action `json:"action"`
	Confirmed bool   `json:"confirmed"`
}

// KeyValueStore is the local persisted state: snapshot, sync time, settings.
type KeyValueStore interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Del(ctx context.Context, key string) error
}

// Assistant is the generative-AI collaborator.
type Assistant interface {
	SuggestTask(ctx context.Context, description string) (string, error)
	AnalyzeMaintenance(ctx context.Context, description string, image *Image) (string, error)
	DraftPaymentReminder(ctx context.Context, inv Invoice) (string, error)
	DraftLeaseAgreement(ctx context.Context, t Tenant) (string, error)
}

type Image struct {
	MimeType string
	Data     []byte
}

type TaskSuggestion struct {
	Assignee  string       `json:"assignee"`
	Priority  TaskPriority `json:"priority"`
	Reasoning string       `json:"reasoning"`
}
