package repository

import (
	"encoding/json"

	"pagechat/internal/entities"
	"pagechat/internal/kvstore"
)

// ConversationCache keeps the last known message list per conversation so the
// widget can render instantly on open and survive the backend being down.
// During an optimistic send the cache is always a superset-or-equal of the
// last confirmed server write.
type ConversationCache struct {
	kv kvstore.Store
}

func NewConversationCache(kv kvstore.Store) *ConversationCache {
	return &ConversationCache{kv: kv}
}

// Load returns the cached snapshot, or nil when absent or unreadable.
func (c *ConversationCache) Load(pageID, guestID string) []entities.Message {
	raw, ok := c.kv.Get(messagesKey(pageID, guestID))
	if !ok {
		return nil
	}
	var messages []entities.Message
	if json.Unmarshal([]byte(raw), &messages) != nil {
		return nil
	}
	return messages
}

func (c *ConversationCache) Save(pageID, guestID string, messages []entities.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	return c.kv.Set(messagesKey(pageID, guestID), string(raw))
}

func (c *ConversationCache) Clear(pageID, guestID string) error {
	return c.kv.Delete(messagesKey(pageID, guestID))
}
