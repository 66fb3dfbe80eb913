package usecases

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"

	"pagechat/internal/entities"
	"pagechat/internal/interfaces"
)

// AIBridge wraps the backend AI proxy: it normalizes replies (models
// routinely ignore formatting instructions and emit JSON inside prose or
// code fences), backfills item images from the catalog, and guarantees every
// item carries a navigable link.
type AIBridge struct {
	pageID  string
	ai      interfaces.AIAPI
	catalog interfaces.CatalogAPI
}

func NewAIBridge(pageID string, ai interfaces.AIAPI, catalog interfaces.CatalogAPI) *AIBridge {
	return &AIBridge{pageID: pageID, ai: ai, catalog: catalog}
}

// AIResult is the normalized reply handed to the conversation engine.
type AIResult struct {
	Text     string
	Items    []entities.LinkedItem
	Provider string
	AnswerID *int
}

// Complete sends the running history plus grounding context to the AI proxy.
// Any network or parse failure returns (nil, err); callers must treat that as
// "no AI reply produced", never as an error to surface to the guest.
func (b *AIBridge) Complete(ctx context.Context, history []entities.Message, pageContext, dataSource string) (*AIResult, error) {
	req := entities.AIRequest{
		Messages:    toAIMessages(history),
		PageContext: pageContext,
		DataSource:  dataSource,
	}
	resp, err := b.ai.Complete(ctx, b.pageID, req)
	if err != nil {
		return nil, err
	}

	text, embedded := unwrapReplyText(resp.Text)

	rawItems := resp.Items
	if len(rawItems) == 0 && len(embedded) > 0 {
		rawItems = embedded
	}

	items := make([]entities.LinkedItem, 0, len(rawItems))
	for _, raw := range rawItems {
		if item := normalizeAIItem(raw, dataSource); item.ID != "" || item.Title != "" {
			items = append(items, item)
		}
	}

	b.enrichImages(ctx, items)
	ensureLinks(items)

	return &AIResult{
		Text:     text,
		Items:    items,
		Provider: resp.Provider,
		AnswerID: resp.AnswerID,
	}, nil
}

// SendFeedback reports a thumbs up/down for a server-issued answer id and
// returns whether the backend acknowledged it. Never propagates errors.
func (b *AIBridge) SendFeedback(ctx context.Context, answerID int, positive bool) bool {
	ok, err := b.ai.Feedback(ctx, b.pageID, answerID, positive)
	if err != nil {
		log.Warn().Err(err).Int("answer_id", answerID).Msg("ai feedback failed")
		return false
	}
	return ok
}

// AutoLink recovers structured catalog references the AI mentioned only as
// prose bullets. It runs when fewer than 3 structured items came back;
// each "* ..." line's trailing text is resolved against the cached catalog
// and merged, skipping ids already present.
func (b *AIBridge) AutoLink(text string, items []entities.LinkedItem, find func(title string) []entities.SearchResult) []entities.LinkedItem {
	if len(items) >= 3 {
		return items
	}

	present := make(map[string]struct{}, len(items))
	for _, item := range items {
		present[item.ID] = struct{}{}
	}

	for _, title := range bulletTitles(text) {
		for _, match := range find(title) {
			if _, ok := present[match.Item.ID]; ok {
				continue
			}
			present[match.Item.ID] = struct{}{}
			items = append(items, entities.LinkedItem{
				ID:    match.Item.ID,
				Title: match.Item.Title,
				Type:  match.Item.Source,
				Price: match.Item.Price,
				Image: match.Item.Image,
				Link:  match.Item.Link(),
			})
		}
	}
	return items
}

// bulletTitles extracts candidate titles from "*" bullets. Bullets appear
// both as line prefixes and inline mid-sentence, so every "*" on a line opens
// a candidate running to the next "*" or end of line. Bold markers collapse
// to empty segments and are dropped.
func bulletTitles(text string) []string {
	var titles []string
	for _, line := range strings.Split(text, "\n") {
		segments := strings.Split(line, "*")
		if len(segments) < 2 {
			continue
		}
		for _, seg := range segments[1:] {
			if title := strings.TrimSpace(seg); title != "" {
				titles = append(titles, title)
			}
		}
	}
	return titles
}

// unwrapReplyText handles replies that are raw or fenced JSON instead of
// prose. When the payload parses and carries text/items sub-fields they are
// unwrapped; otherwise the original text is used verbatim.
func unwrapReplyText(text string) (string, []map[string]any) {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	if !strings.HasPrefix(trimmed, "{") {
		return text, nil
	}

	var payload struct {
		Text  string           `json:"text"`
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		// Models truncate and mis-quote JSON often enough that a repair pass
		// is worth one more attempt before giving up.
		repaired, repairErr := jsonrepair.JSONRepair(trimmed)
		if repairErr != nil || json.Unmarshal([]byte(repaired), &payload) != nil {
			return text, nil
		}
	}
	if payload.Text == "" && len(payload.Items) == 0 {
		return text, nil
	}
	if payload.Text == "" {
		payload.Text = text
	}
	return payload.Text, payload.Items
}

func normalizeAIItem(raw map[string]any, fallbackType string) entities.LinkedItem {
	item := entities.LinkedItem{
		ID:    entities.FieldString(raw, "id", "Id", "ID"),
		Title: entities.FieldString(raw, "title", "Title", "name", "Name"),
		Type:  entities.FieldString(raw, "type", "Type", "source", "Source"),
		Price: entities.FieldString(raw, "price", "Price"),
		Image: entities.FieldString(raw, "image", "Image", "ImgOne", "Thumbnail"),
		Link:  entities.FieldString(raw, "link", "Link", "url"),
	}
	if item.Type == "" {
		if fallbackType != "" {
			item.Type = fallbackType
		} else {
			item.Type = "product"
		}
	}
	return item
}

// enrichImages backfills missing item images with one catalog fetch per item,
// fanned out concurrently and awaited jointly. Failures are swallowed per
// item; enrichment is best-effort, not required for correctness.
func (b *AIBridge) enrichImages(ctx context.Context, items []entities.LinkedItem) {
	var wg sync.WaitGroup
	for i := range items {
		if items[i].Image != "" || items[i].ID == "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := b.catalog.Entity(ctx, items[i].Type, items[i].ID)
			if err != nil {
				log.Debug().Err(err).Str("id", items[i].ID).Msg("item image backfill skipped")
				return
			}
			items[i].Image = entities.FieldString(record, entities.ImageAliases...)
		}(i)
	}
	wg.Wait()
}

func ensureLinks(items []entities.LinkedItem) {
	for i := range items {
		if items[i].Link == "" && items[i].ID != "" {
			items[i].Link = "/" + items[i].Type + "/view/" + items[i].ID
		}
	}
}

func toAIMessages(history []entities.Message) []entities.AIMessage {
	out := make([]entities.AIMessage, 0, len(history))
	for _, msg := range history {
		role := "user"
		if msg.Sender == entities.SenderPage {
			role = "assistant"
		}
		out = append(out, entities.AIMessage{Role: role, Content: msg.Text})
	}
	return out
}
