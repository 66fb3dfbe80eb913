package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagechat/internal/entities"
)

func TestConversationByGuestNotFoundIsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewBackendClient(server.URL)
	rec, err := client.ConversationByGuest(context.Background(), "page1", "guest_abc")
	require.NoError(t, err, "404 means no record, not a failure")
	assert.Nil(t, rec)
}

func TestConversationByGuestDecodesStringEncodedItemList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customerChat/api/byPageId/byGuest/page1/guest_abc", r.URL.Path)
		// itemList arrives as a JSON string containing JSON, inside a data envelope.
		w.Write([]byte(`{"data":{"id":7,"guestId":"guest_abc","pageId":"page1",` +
			`"itemList":"[{\"id\":\"1\",\"text\":\"hello\",\"sender\":\"guest\"}]","isAIActive":false}}`))
	}))
	defer server.Close()

	client := NewBackendClient(server.URL)
	rec, err := client.ConversationByGuest(context.Background(), "page1", "guest_abc")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, 7, rec.ID)
	require.Len(t, rec.Messages, 1)
	assert.Equal(t, "hello", rec.Messages[0].Text)
	assert.Equal(t, entities.SenderGuest, rec.Messages[0].Sender)
	require.NotNil(t, rec.IsAIActive)
	assert.False(t, *rec.IsAIActive)
}

func TestConversationByGuestToleratesArrayResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":9,"guestId":"guest_abc","pageId":"page1","itemList":[{"id":"1","text":"hi","sender":"page"}]}]`))
	}))
	defer server.Close()

	client := NewBackendClient(server.URL)
	rec, err := client.ConversationByGuest(context.Background(), "page1", "guest_abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 9, rec.ID)
	require.Len(t, rec.Messages, 1)

	// An empty array reads as no record.
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer empty.Close()
	rec, err = NewBackendClient(empty.URL).ConversationByGuest(context.Background(), "page1", "guest_abc")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCreateConversationSendsMultipartAndDecodesID(t *testing.T) {
	var gotGuestID, gotInit, gotItemList string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotGuestID = r.FormValue("guestId")
		gotInit = r.FormValue("init")
		gotItemList = r.FormValue("itemList")
		w.Write([]byte(`{"id":42}`))
	}))
	defer server.Close()

	client := NewBackendClient(server.URL)
	id, err := client.CreateConversation(context.Background(), &entities.ConversationRecord{
		GuestID:  "guest_abc",
		PageID:   "page1",
		Messages: []entities.Message{{ID: "1", Text: "hi", Sender: entities.SenderGuest}},
	}, true)
	require.NoError(t, err)

	assert.Equal(t, 42, id)
	assert.Equal(t, "guest_abc", gotGuestID)
	assert.Equal(t, "true", gotInit)

	var sent []entities.Message
	require.NoError(t, json.Unmarshal([]byte(gotItemList), &sent))
	require.Len(t, sent, 1)
	assert.Equal(t, "hi", sent[0].Text)
}

func TestUpdateMessagesPatchesItemList(t *testing.T) {
	var gotMethod, gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotID = r.FormValue("id")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewBackendClient(server.URL)
	err := client.UpdateMessages(context.Background(), 42, []entities.Message{{ID: "1", Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "42", gotID)
}

func TestPageBlocksAcceptsStringsAndObjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"blocks":["ProductListStyleTwo",{"type":"BookSlider"},{"name":"NewsGrid"},{"other":"ignored"}]}}`))
	}))
	defer server.Close()

	client := NewBackendClient(server.URL)
	blocks, err := client.PageBlocks(context.Background(), "page1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ProductListStyleTwo", "BookSlider", "NewsGrid"}, blocks)
}

func TestCompletePostsJSONAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/api/page1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req entities.AIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "grounding", req.PageContext)

		w.Write([]byte(`{"success":true,"text":"hello there","provider":"gemini","answerId":5}`))
	}))
	defer server.Close()

	client := NewBackendClient(server.URL)
	resp, err := client.Complete(context.Background(), "page1", entities.AIRequest{PageContext: "grounding"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "hello there", resp.Text)
	require.NotNil(t, resp.AnswerID)
	assert.Equal(t, 5, *resp.AnswerID)
}

func TestServerErrorsSurfaceStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewBackendClient(server.URL)
	_, err := client.ListThreads(context.Background(), "page1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
