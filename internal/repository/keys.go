package repository

// Key layout for the local store. Everything is namespaced by page id so one
// widget host can serve several tenants without bleed.
func guestIDKey(pageID string) string   { return "chat_guest_id_" + pageID }
func guestInfoKey(pageID string) string { return "chat_guest_info_" + pageID }

func messagesKey(pageID, guestID string) string {
	return "chat_messages_" + pageID + "_" + guestID
}

func dataCacheKey(pageID string) string    { return "chat_data_cache_" + pageID }
func dataCacheAtKey(pageID string) string  { return "chat_data_cache_at_" + pageID }
func contextKey(pageID string) string      { return "chat_context_" + pageID }
func sourcesKey(pageID string) string      { return "chat_sources_" + pageID }
func activeSourceKey(pageID string) string { return "chat_active_source_" + pageID }
