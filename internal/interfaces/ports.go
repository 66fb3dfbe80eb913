package interfaces

import (
	"context"

	"pagechat/internal/entities"
)

// ConversationAPI is the remote chat-record surface: one generic CRUD
// endpoint keyed by page id, mirrored locally by the conversation engine.
type ConversationAPI interface {
	// ListThreads returns every conversation record for a tenant, including
	// the reserved settings pseudo-record (callers filter it).
	ListThreads(ctx context.Context, pageID string) ([]entities.ConversationRecord, error)
	// ConversationByGuest returns (nil, nil) when no record exists yet.
	ConversationByGuest(ctx context.Context, pageID, guestID string) (*entities.ConversationRecord, error)
	// CreateConversation posts a new record and returns the server-assigned id.
	CreateConversation(ctx context.Context, rec *entities.ConversationRecord, init bool) (int, error)
	UpdateMessages(ctx context.Context, id int, messages []entities.Message) error
	UpdateAIActive(ctx context.Context, id int, active bool) error
	DeleteConversation(ctx context.Context, id int) error
}

// CatalogAPI is the read-only slice of the CMS backend the data cache and the
// AI enrichment step consume.
type CatalogAPI interface {
	// PageBlocks returns the block type names of a tenant's page config.
	PageBlocks(ctx context.Context, pageID string) ([]string, error)
	ContactInfo(ctx context.Context, pageID string) (*entities.ContactInfo, error)
	// Collection fetches one whole catalog collection ("product", "book", ...).
	Collection(ctx context.Context, source, pageID string) ([]map[string]any, error)
	// Entity fetches a single catalog record, used for image backfill.
	Entity(ctx context.Context, entityType, id string) (map[string]any, error)
}

// AIAPI is the backend AI proxy. The widget never calls third-party AI
// providers directly; the proxy is the CORS/security boundary.
type AIAPI interface {
	Complete(ctx context.Context, pageID string, req entities.AIRequest) (*entities.AIResponse, error)
	Feedback(ctx context.Context, pageID string, answerID int, positive bool) (bool, error)
}

// Notifier pushes a handoff alert to tenant staff when a guest writes into a
// conversation whose AI is switched off. Implementations must never block or
// propagate errors into the send path.
type Notifier interface {
	NotifyHandoff(pageID, guestName, text string)
}
