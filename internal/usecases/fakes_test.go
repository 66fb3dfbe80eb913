package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"pagechat/internal/entities"
	"pagechat/internal/kvstore"
	"pagechat/internal/repository"
	"pagechat/internal/retry"
)

var errBackendDown = errors.New("backend down")

// fakeConversationAPI is an in-memory stand-in for the remote chat-record
// endpoint. failReads makes the next N read calls fail so retry behavior can
// be exercised.
type fakeConversationAPI struct {
	mu        sync.Mutex
	records   map[string]*entities.ConversationRecord // keyed by guest id
	nextID    int
	failReads int
	readCalls int
	holdReads chan struct{}

	updateErr   error
	updateCalls int
	deleted     []int
}

func newFakeConversationAPI() *fakeConversationAPI {
	return &fakeConversationAPI{
		records: make(map[string]*entities.ConversationRecord),
		nextID:  100,
	}
}

func (f *fakeConversationAPI) seed(rec entities.ConversationRecord) *entities.ConversationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == 0 {
		f.nextID++
		rec.ID = f.nextID
	}
	stored := rec
	f.records[rec.GuestID] = &stored
	return &stored
}

func (f *fakeConversationAPI) failNextReads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failReads = n
}

// holdReadsOn parks every subsequent read until ch is closed, simulating a
// backend that answers slowly.
func (f *fakeConversationAPI) holdReadsOn(ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdReads = ch
}

func (f *fakeConversationAPI) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCalls
}

func (f *fakeConversationAPI) gate() {
	f.mu.Lock()
	hold := f.holdReads
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}
}

func (f *fakeConversationAPI) readFailure() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	if f.failReads > 0 {
		f.failReads--
		return true
	}
	return false
}

func (f *fakeConversationAPI) ListThreads(ctx context.Context, pageID string) ([]entities.ConversationRecord, error) {
	if f.readFailure() {
		return nil, errBackendDown
	}
	f.gate()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.ConversationRecord
	for _, rec := range f.records {
		if rec.PageID == pageID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeConversationAPI) ConversationByGuest(ctx context.Context, pageID, guestID string) (*entities.ConversationRecord, error) {
	if f.readFailure() {
		return nil, errBackendDown
	}
	f.gate()
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[guestID]
	if !ok || rec.PageID != pageID {
		return nil, nil
	}
	copied := *rec
	copied.Messages = append([]entities.Message(nil), rec.Messages...)
	return &copied, nil
}

func (f *fakeConversationAPI) CreateConversation(ctx context.Context, rec *entities.ConversationRecord, init bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	stored := *rec
	stored.ID = f.nextID
	f.records[rec.GuestID] = &stored
	return stored.ID, nil
}

func (f *fakeConversationAPI) UpdateMessages(ctx context.Context, id int, messages []entities.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, rec := range f.records {
		if rec.ID == id {
			rec.Messages = append([]entities.Message(nil), messages...)
			return nil
		}
	}
	return errors.New("record not found")
}

func (f *fakeConversationAPI) UpdateAIActive(ctx context.Context, id int, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ID == id {
			v := active
			rec.IsAIActive = &v
			return nil
		}
	}
	return errors.New("record not found")
}

func (f *fakeConversationAPI) DeleteConversation(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	for guestID, rec := range f.records {
		if rec.ID == id {
			delete(f.records, guestID)
			return nil
		}
	}
	return errors.New("record not found")
}

// fakeCatalogAPI serves canned collections and entity records.
type fakeCatalogAPI struct {
	mu          sync.Mutex
	blocks      []string
	blocksErr   error
	contact     *entities.ContactInfo
	contactErr  error
	collections map[string][]map[string]any
	failSources map[string]bool
	entities    map[string]map[string]any
	entityCalls int
}

func newFakeCatalogAPI() *fakeCatalogAPI {
	return &fakeCatalogAPI{
		collections: make(map[string][]map[string]any),
		failSources: make(map[string]bool),
		entities:    make(map[string]map[string]any),
	}
}

func (f *fakeCatalogAPI) PageBlocks(ctx context.Context, pageID string) ([]string, error) {
	if f.blocksErr != nil {
		return nil, f.blocksErr
	}
	return f.blocks, nil
}

func (f *fakeCatalogAPI) ContactInfo(ctx context.Context, pageID string) (*entities.ContactInfo, error) {
	if f.contactErr != nil {
		return nil, f.contactErr
	}
	return f.contact, nil
}

func (f *fakeCatalogAPI) Collection(ctx context.Context, source, pageID string) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSources[source] {
		return nil, errBackendDown
	}
	return f.collections[source], nil
}

func (f *fakeCatalogAPI) Entity(ctx context.Context, entityType, id string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entityCalls++
	record, ok := f.entities[entityType+"/"+id]
	if !ok {
		return nil, errBackendDown
	}
	return record, nil
}

// fakeAIAPI returns one canned response and records what it was asked.
type fakeAIAPI struct {
	mu         sync.Mutex
	resp       *entities.AIResponse
	err        error
	feedbackOK bool
	requests   []entities.AIRequest
	feedbacks  []int
}

func (f *fakeAIAPI) Complete(ctx context.Context, pageID string, req entities.AIRequest) (*entities.AIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeAIAPI) Feedback(ctx context.Context, pageID string, answerID int, positive bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbacks = append(f.feedbacks, answerID)
	return f.feedbackOK, nil
}

// fakeNotifier records handoff alerts.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) NotifyHandoff(pageID, guestName, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// testEngine bundles an engine with the fakes behind it.
type testEngine struct {
	engine   *Engine
	api      *fakeConversationAPI
	catalog  *fakeCatalogAPI
	ai       *fakeAIAPI
	notifier *fakeNotifier
	kv       *kvstore.Memory
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestEngine(role Role) *testEngine {
	api := newFakeConversationAPI()
	catalog := newFakeCatalogAPI()
	ai := &fakeAIAPI{feedbackOK: true}
	notifier := &fakeNotifier{}
	kv := kvstore.NewMemory()
	clock := &fakeClock{now: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)}

	engine := NewEngine("page1", role, EngineDeps{
		Identity: repository.NewIdentityStore(kv),
		Cache:    repository.NewConversationCache(kv),
		Data:     NewDataCacheService("page1", catalog, repository.NewDataCacheRepo(kv)),
		Bridge:   NewAIBridge("page1", ai, catalog),
		API:      api,
		Settings: NewTenantSettings(api),
		Notifier: notifier,
		Retry:    retry.ReadPolicy(),
		Sleep:    func(ctx context.Context, d time.Duration) error { return nil },
		Now:      clock.Now,
	})

	return &testEngine{
		engine:   engine,
		api:      api,
		catalog:  catalog,
		ai:       ai,
		notifier: notifier,
		kv:       kv,
		clock:    clock,
	}
}
