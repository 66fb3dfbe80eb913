package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pagechat/internal/entities"
)

// BackendClient talks to the remote CMS backend. All chat, catalog and AI
// traffic goes through it; it implements interfaces.ConversationAPI,
// interfaces.CatalogAPI and interfaces.AIAPI.
//
// The chat-record endpoints accept multipart form fields (the backend is a
// generic CMS CRUD surface, not a JSON API); the AI proxy speaks JSON.
type BackendClient struct {
	baseURL string
	http    *http.Client
}

func NewBackendClient(baseURL string) *BackendClient {
	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// --- wire shapes ---------------------------------------------------------

// wireRecord is the chat record as the backend serves it. itemList arrives as
// a JSON-encoded string most of the time, but some deployments return a bare
// array; decodeItemList accepts both.
type wireRecord struct {
	ID           int             `json:"id"`
	GuestID      string          `json:"guestId"`
	PageID       string          `json:"pageId"`
	GuestName    string          `json:"guestName"`
	GuestPhone   string          `json:"guestPhone"`
	GuestEmail   string          `json:"guestEmail"`
	GuestCompany string          `json:"guestCompany"`
	ItemList     json.RawMessage `json:"itemList"`
	IsAIActive   *bool           `json:"isAIActive"`
}

func (w wireRecord) toRecord() entities.ConversationRecord {
	return entities.ConversationRecord{
		ID:           w.ID,
		GuestID:      w.GuestID,
		PageID:       w.PageID,
		GuestName:    w.GuestName,
		GuestPhone:   w.GuestPhone,
		GuestEmail:   w.GuestEmail,
		GuestCompany: w.GuestCompany,
		Messages:     decodeItemList(w.ItemList),
		IsAIActive:   w.IsAIActive,
	}
}

func decodeItemList(raw json.RawMessage) []entities.Message {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	var messages []entities.Message
	if trimmed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return nil
		}
		if json.Unmarshal([]byte(encoded), &messages) != nil {
			return nil
		}
		return messages
	}
	if json.Unmarshal(trimmed, &messages) != nil {
		return nil
	}
	return messages
}

// --- ConversationAPI -----------------------------------------------------

func (c *BackendClient) ListThreads(ctx context.Context, pageID string) ([]entities.ConversationRecord, error) {
	body, err := c.get(ctx, "/customerChat/api/byPageId/"+url.PathEscape(pageID))
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	var wires []wireRecord
	if err := json.Unmarshal(unwrapData(body), &wires); err != nil {
		return nil, fmt.Errorf("list threads: decode: %w", err)
	}
	records := make([]entities.ConversationRecord, 0, len(wires))
	for _, w := range wires {
		records = append(records, w.toRecord())
	}
	return records, nil
}

func (c *BackendClient) ConversationByGuest(ctx context.Context, pageID, guestID string) (*entities.ConversationRecord, error) {
	path := "/customerChat/api/byPageId/byGuest/" + url.PathEscape(pageID) + "/" + url.PathEscape(guestID)
	body, err := c.get(ctx, path)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("conversation by guest: %w", err)
	}
	unwrapped := bytes.TrimSpace(unwrapData(body))
	if len(unwrapped) == 0 || string(unwrapped) == "null" {
		return nil, nil
	}
	// Some deployments answer the byGuest lookup with a one-element array.
	if unwrapped[0] == '[' {
		var wires []wireRecord
		if err := json.Unmarshal(unwrapped, &wires); err != nil {
			return nil, fmt.Errorf("conversation by guest: decode: %w", err)
		}
		if len(wires) == 0 {
			return nil, nil
		}
		rec := wires[0].toRecord()
		return &rec, nil
	}
	var w wireRecord
	if err := json.Unmarshal(unwrapped, &w); err != nil {
		return nil, fmt.Errorf("conversation by guest: decode: %w", err)
	}
	if w.ID == 0 && w.GuestID == "" {
		return nil, nil
	}
	rec := w.toRecord()
	return &rec, nil
}

func (c *BackendClient) CreateConversation(ctx context.Context, rec *entities.ConversationRecord, init bool) (int, error) {
	itemList, err := json.Marshal(rec.Messages)
	if err != nil {
		return 0, fmt.Errorf("create conversation: encode itemList: %w", err)
	}
	fields := map[string]string{
		"guestId":      rec.GuestID,
		"pageId":       rec.PageID,
		"guestName":    rec.GuestName,
		"guestPhone":   rec.GuestPhone,
		"guestEmail":   rec.GuestEmail,
		"guestCompany": rec.GuestCompany,
		"itemList":     string(itemList),
	}
	if init {
		fields["init"] = "true"
	}
	body, err := c.form(ctx, http.MethodPost, "/customerChat/api", fields)
	if err != nil {
		return 0, fmt.Errorf("create conversation: %w", err)
	}
	var w wireRecord
	if err := json.Unmarshal(unwrapData(body), &w); err != nil || w.ID == 0 {
		// Fall back to a bare {"id": n} response shape.
		var idOnly struct {
			ID int `json:"id"`
		}
		if err2 := json.Unmarshal(unwrapData(body), &idOnly); err2 != nil || idOnly.ID == 0 {
			return 0, fmt.Errorf("create conversation: no record id in response")
		}
		return idOnly.ID, nil
	}
	return w.ID, nil
}

func (c *BackendClient) UpdateMessages(ctx context.Context, id int, messages []entities.Message) error {
	itemList, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("update conversation %d: encode itemList: %w", id, err)
	}
	_, err = c.form(ctx, http.MethodPatch, "/customerChat/api", map[string]string{
		"id":       strconv.Itoa(id),
		"itemList": string(itemList),
	})
	if err != nil {
		return fmt.Errorf("update conversation %d: %w", id, err)
	}
	return nil
}

func (c *BackendClient) UpdateAIActive(ctx context.Context, id int, active bool) error {
	_, err := c.form(ctx, http.MethodPatch, "/customerChat/api", map[string]string{
		"id":         strconv.Itoa(id),
		"IsAIActive": strconv.FormatBool(active),
	})
	if err != nil {
		return fmt.Errorf("update conversation %d ai flag: %w", id, err)
	}
	return nil
}

func (c *BackendClient) DeleteConversation(ctx context.Context, id int) error {
	_, err := c.form(ctx, http.MethodDelete, "/customerChat/api", map[string]string{
		"id": strconv.Itoa(id),
	})
	if err != nil {
		return fmt.Errorf("delete conversation %d: %w", id, err)
	}
	return nil
}

// --- CatalogAPI ----------------------------------------------------------

func (c *BackendClient) PageBlocks(ctx context.Context, pageID string) ([]string, error) {
	body, err := c.get(ctx, "/page/api/"+url.PathEscape(pageID))
	if err != nil {
		return nil, fmt.Errorf("page config: %w", err)
	}
	var config struct {
		Blocks []json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal(unwrapData(body), &config); err != nil {
		return nil, fmt.Errorf("page config: decode: %w", err)
	}
	names := make([]string, 0, len(config.Blocks))
	for _, raw := range config.Blocks {
		// A block is either a bare string or an object with a type field.
		var s string
		if json.Unmarshal(raw, &s) == nil {
			names = append(names, s)
			continue
		}
		var obj map[string]any
		if json.Unmarshal(raw, &obj) == nil {
			if t := entities.FieldString(obj, "type", "Type", "blockType", "name"); t != "" {
				names = append(names, t)
			}
		}
	}
	return names, nil
}

func (c *BackendClient) ContactInfo(ctx context.Context, pageID string) (*entities.ContactInfo, error) {
	body, err := c.get(ctx, "/contactInfo/api/byPageId/"+url.PathEscape(pageID))
	if err != nil {
		return nil, fmt.Errorf("contact info: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(unwrapData(body), &raw); err != nil {
		return nil, fmt.Errorf("contact info: decode: %w", err)
	}
	return &entities.ContactInfo{
		Name:    entities.FieldString(raw, "Name", "name", "businessName", "CompanyName"),
		Phone:   entities.FieldString(raw, "Phone", "phone", "PhoneOne"),
		Email:   entities.FieldString(raw, "Email", "email"),
		Address: entities.FieldString(raw, "Address", "address"),
		About:   entities.FieldString(raw, "About", "about", "Description", "description"),
	}, nil
}

func (c *BackendClient) Collection(ctx context.Context, source, pageID string) ([]map[string]any, error) {
	path := "/" + url.PathEscape(source) + "/api/byPageId/" + url.PathEscape(pageID)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", source, err)
	}
	var items []map[string]any
	if err := json.Unmarshal(unwrapData(body), &items); err != nil {
		return nil, fmt.Errorf("collection %s: decode: %w", source, err)
	}
	return items, nil
}

func (c *BackendClient) Entity(ctx context.Context, entityType, id string) (map[string]any, error) {
	path := "/" + url.PathEscape(entityType) + "/api/" + url.PathEscape(id)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("entity %s/%s: %w", entityType, id, err)
	}
	var item map[string]any
	if err := json.Unmarshal(unwrapData(body), &item); err != nil {
		return nil, fmt.Errorf("entity %s/%s: decode: %w", entityType, id, err)
	}
	return item, nil
}

// --- AIAPI ---------------------------------------------------------------

func (c *BackendClient) Complete(ctx context.Context, pageID string, req entities.AIRequest) (*entities.AIResponse, error) {
	body, err := c.postJSON(ctx, "/ai/api/"+url.PathEscape(pageID), req)
	if err != nil {
		return nil, fmt.Errorf("ai completion: %w", err)
	}
	var resp entities.AIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ai completion: decode: %w", err)
	}
	return &resp, nil
}

func (c *BackendClient) Feedback(ctx context.Context, pageID string, answerID int, positive bool) (bool, error) {
	payload := map[string]any{"answerId": answerID, "isPositive": positive}
	body, err := c.postJSON(ctx, "/ai/api/"+url.PathEscape(pageID)+"/feedback", payload)
	if err != nil {
		return false, fmt.Errorf("ai feedback: %w", err)
	}
	var resp struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("ai feedback: decode: %w", err)
	}
	return resp.Success, nil
}

// --- transport helpers ---------------------------------------------------

type httpError struct {
	status int
	path   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.path, e.status)
}

func isNotFound(err error) bool {
	he, ok := err.(*httpError)
	return ok && he.status == http.StatusNotFound
}

func (c *BackendClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, path)
}

func (c *BackendClient) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path)
}

func (c *BackendClient) form(ctx context.Context, method, path string, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, path)
}

func (c *BackendClient) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{status: resp.StatusCode, path: path}
	}
	return body, nil
}

// unwrapData strips the {"data": ...} envelope some backend deployments wrap
// around list and detail responses.
func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Data) > 0 {
		return bytes.TrimSpace(envelope.Data)
	}
	return trimmed
}
