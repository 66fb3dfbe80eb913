package entities

import "strings"

// SettingsGuestPrefix marks the reserved pseudo-conversation holding the
// tenant-wide AI toggle. The backend only exposes one generic chat record
// endpoint, so the setting rides on a record with guestId
// "AI_SETTINGS_<pageID>".
const SettingsGuestPrefix = "AI_SETTINGS_"

// SettingsGuestID returns the reserved guest id for a tenant's settings record.
func SettingsGuestID(pageID string) string {
	return SettingsGuestPrefix + pageID
}

// IsSettingsRecord reports whether a guest id names a settings pseudo-record
// rather than a real conversation.
func IsSettingsRecord(guestID string) bool {
	return strings.HasPrefix(guestID, SettingsGuestPrefix)
}

// ConversationRecord mirrors the server-side chat record: one per
// (pageID, guestID), holding the whole message history. IsAIActive is nil
// when the record carries no per-conversation override.
type ConversationRecord struct {
	ID           int       `json:"id"`
	GuestID      string    `json:"guestId"`
	PageID       string    `json:"pageId"`
	GuestName    string    `json:"guestName"`
	GuestPhone   string    `json:"guestPhone"`
	GuestEmail   string    `json:"guestEmail"`
	GuestCompany string    `json:"guestCompany"`
	Messages     []Message `json:"itemList"`
	IsAIActive   *bool     `json:"isAIActive,omitempty"`
}

// AdminThread is the summary row shown in the admin thread list.
type AdminThread struct {
	RecordID     int    `json:"recordId"`
	GuestID      string `json:"guestId"`
	GuestName    string `json:"guestName"`
	GuestPhone   string `json:"guestPhone"`
	LastText     string `json:"lastText"`
	LastTime     string `json:"lastTime"`
	MessageCount int    `json:"messageCount"`
}

// ThreadSummary condenses a record into its admin list row.
func ThreadSummary(rec ConversationRecord) AdminThread {
	t := AdminThread{
		RecordID:     rec.ID,
		GuestID:      rec.GuestID,
		GuestName:    rec.GuestName,
		GuestPhone:   rec.GuestPhone,
		MessageCount: len(rec.Messages),
	}
	if n := len(rec.Messages); n > 0 {
		t.LastText = rec.Messages[n-1].Text
		t.LastTime = rec.Messages[n-1].Time
	}
	return t
}
