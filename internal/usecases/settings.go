package usecases

import (
	"context"
	"fmt"

	"pagechat/internal/entities"
	"pagechat/internal/interfaces"
)

// TenantSettings reads and writes the tenant-wide AI toggle. The backend has
// no settings table, only the generic chat-record endpoint, so the flag rides
// on a reserved pseudo-record with guestId "AI_SETTINGS_<pageID>"; this type
// is the one place that workaround is visible.
type TenantSettings struct {
	api interfaces.ConversationAPI
}

func NewTenantSettings(api interfaces.ConversationAPI) *TenantSettings {
	return &TenantSettings{api: api}
}

// AIEnabled returns the tenant-wide flag; missing record or missing field
// defaults to enabled.
func (s *TenantSettings) AIEnabled(ctx context.Context, pageID string) (bool, error) {
	rec, err := s.api.ConversationByGuest(ctx, pageID, entities.SettingsGuestID(pageID))
	if err != nil {
		return true, fmt.Errorf("tenant ai setting: %w", err)
	}
	if rec == nil || rec.IsAIActive == nil {
		return true, nil
	}
	return *rec.IsAIActive, nil
}

// SetAIEnabled writes the tenant-wide flag, creating the settings record on
// first use.
func (s *TenantSettings) SetAIEnabled(ctx context.Context, pageID string, enabled bool) error {
	sentinel := entities.SettingsGuestID(pageID)
	rec, err := s.api.ConversationByGuest(ctx, pageID, sentinel)
	if err != nil {
		return fmt.Errorf("tenant ai setting: %w", err)
	}
	if rec == nil {
		id, err := s.api.CreateConversation(ctx, &entities.ConversationRecord{
			GuestID: sentinel,
			PageID:  pageID,
		}, false)
		if err != nil {
			return fmt.Errorf("tenant ai setting: create: %w", err)
		}
		return s.api.UpdateAIActive(ctx, id, enabled)
	}
	return s.api.UpdateAIActive(ctx, rec.ID, enabled)
}
