package usecases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pagechat/internal/entities"
	"pagechat/internal/interfaces"
	"pagechat/internal/repository"
	"pagechat/internal/retry"
)

// Role is the side of the widget a session drives.
type Role string

const (
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
)

// SessionState is the explicit state of a widget session. The original
// widget tracked this as independent booleans; a single enum keeps the
// impossible combinations unrepresentable.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateLoading
	StateRegistration
	StateConnected
	StateThreadListing
	StateThreadSelected
)

func (s SessionState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateRegistration:
		return "registration"
	case StateConnected:
		return "connected"
	case StateThreadListing:
		return "thread_listing"
	case StateThreadSelected:
		return "thread_selected"
	default:
		return "uninitialized"
	}
}

// ConnectedPhase is the sub-state within a connected session.
type ConnectedPhase int

const (
	PhaseIdle ConnectedPhase = iota
	PhaseSending
	PhaseAwaitingAI
)

func (p ConnectedPhase) String() string {
	switch p {
	case PhaseSending:
		return "sending"
	case PhaseAwaitingAI:
		return "awaiting_ai"
	default:
		return "idle"
	}
}

// ConnectionStatus drives the "connection interrupted" banner. Network
// failures never surface as hard errors; the widget degrades to the last
// known local state.
type ConnectionStatus string

const (
	StatusConnecting ConnectionStatus = "connecting"
	StatusConnected  ConnectionStatus = "connected"
	StatusError      ConnectionStatus = "error"
)

// PollInterval is how often an open session re-reads the conversation so
// agent replies appear without guest action.
const PollInterval = 10 * time.Second

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CanSubmitRegistration is the registration gate: name of at least 2 chars,
// phone of at least 6, email optional but well-shaped when present.
func CanSubmitRegistration(name, phone, email string) bool {
	if len(strings.TrimSpace(name)) < 2 {
		return false
	}
	if len(strings.TrimSpace(phone)) < 6 {
		return false
	}
	email = strings.TrimSpace(email)
	return email == "" || emailPattern.MatchString(email)
}

// ErrInvalidRegistration rejects a registration that fails the field gate.
var ErrInvalidRegistration = errors.New("registration requires a name (min 2 chars), phone (min 6 chars) and a valid email if given")

// EngineDeps bundles everything a session needs. Notifier may be nil.
type EngineDeps struct {
	Identity *repository.IdentityStore
	Cache    *repository.ConversationCache
	Data     *DataCacheService
	Bridge   *AIBridge
	API      interfaces.ConversationAPI
	Settings *TenantSettings
	Notifier interfaces.Notifier

	Retry        retry.Policy
	Sleep        retry.SleepFunc
	Now          func() time.Time
	PollInterval time.Duration
}

// Engine owns one widget session: registration state, the mirrored message
// list, the record identity, polling, optimistic sends and the AI invocation
// sequence. All mutable state sits behind one mutex; network calls happen
// outside it.
type Engine struct {
	pageID string
	role   Role
	deps   EngineDeps

	mu         sync.Mutex
	state      SessionState
	phase      ConnectedPhase
	status     ConnectionStatus
	retryCount int

	guest      entities.GuestIdentity
	registered bool
	messages   []entities.Message
	recordID   int

	aiGlobal   bool
	aiOverride *bool

	selectedGuest string
	threads       []entities.AdminThread

	lastMsgID int64

	pollStop chan struct{}
	pollBusy bool
}

func NewEngine(pageID string, role Role, deps EngineDeps) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = retry.Sleep
	}
	if deps.Retry == (retry.Policy{}) {
		deps.Retry = retry.ReadPolicy()
	}
	if deps.PollInterval == 0 {
		deps.PollInterval = PollInterval
	}
	return &Engine{
		pageID:   pageID,
		role:     role,
		deps:     deps,
		status:   StatusConnecting,
		aiGlobal: true,
	}
}

// Open brings the session up: loads the guest identity, kicks a TTL-gated
// catalog refresh in the background, and performs the initial conversation
// load. Safe to call once per engine; Snapshot serves subsequent opens.
func (e *Engine) Open(ctx context.Context) {
	e.mu.Lock()
	if e.state != StateUninitialized {
		e.mu.Unlock()
		return
	}
	e.state = StateLoading
	e.mu.Unlock()

	if e.role == RoleGuest {
		guestID, err := e.deps.Identity.GetOrCreateGuestID(e.pageID)
		if err != nil {
			log.Warn().Err(err).Str("page_id", e.pageID).Msg("guest id persist failed")
		}
		info := e.deps.Identity.StoredGuestInfo(e.pageID)
		info.GuestID = guestID
		e.mu.Lock()
		e.guest = info
		e.registered = info.Registered()
		e.mu.Unlock()
	}

	// Catalog refresh is gated by the TTL and independent of the
	// conversation load; don't let a slow catalog block the chat.
	go func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		e.deps.Data.GetOrRefreshCache(refreshCtx)
	}()

	_ = e.LoadConversation(ctx)

	e.mu.Lock()
	switch {
	case e.role == RoleAdmin && e.selectedGuest == "":
		e.state = StateThreadListing
	case e.role == RoleGuest && !e.registered:
		e.state = StateRegistration
	default:
		e.state = StateConnected
	}
	e.mu.Unlock()
}

// conversationGuestID is the guest whose record this session mirrors: the
// visitor's own id, or the selected thread for an admin.
func (e *Engine) conversationGuestID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.role == RoleAdmin {
		return e.selectedGuest
	}
	return e.guest.GuestID
}

// LoadConversation is the read path shared by open and poll. Reads are
// retried with exponential backoff; on exhaustion the status flips to error
// and whatever is already displayed stays (stale-while-error). The merge rule
// never lets a shorter server snapshot overwrite locally appended messages.
func (e *Engine) LoadConversation(ctx context.Context) error {
	e.mu.Lock()
	adminListing := e.role == RoleAdmin && e.selectedGuest == ""
	e.mu.Unlock()

	if adminListing {
		return e.loadThreads(ctx)
	}

	guestID := e.conversationGuestID()
	if guestID == "" {
		return nil
	}

	// Optimistic render from the local snapshot before any network call.
	if cached := e.deps.Cache.Load(e.pageID, guestID); len(cached) > 0 {
		e.mu.Lock()
		if len(cached) > len(e.messages) {
			e.messages = cached
		}
		e.mu.Unlock()
	}

	var (
		aiGlobal bool
		rec      *entities.ConversationRecord
	)
	err := retry.Do(ctx, e.deps.Retry, e.deps.Sleep, func() error {
		enabled, err := e.deps.Settings.AIEnabled(ctx, e.pageID)
		if err != nil {
			return err
		}
		found, err := e.deps.API.ConversationByGuest(ctx, e.pageID, guestID)
		if err != nil {
			return err
		}
		aiGlobal, rec = enabled, found
		return nil
	})
	if err != nil {
		e.mu.Lock()
		e.status = StatusError
		e.retryCount++
		e.mu.Unlock()
		log.Warn().Err(err).Str("page_id", e.pageID).Msg("conversation load failed")
		return err
	}

	var (
		persist   []entities.Message
		fillGuest *entities.GuestIdentity
	)
	e.mu.Lock()
	e.aiGlobal = aiGlobal
	if rec != nil {
		e.recordID = rec.ID
		if len(rec.Messages) >= len(e.messages) {
			e.messages = rec.Messages
			persist = copyMessages(e.messages)
		}
		if rec.IsAIActive != nil {
			e.aiOverride = rec.IsAIActive
		}
		// A returning guest may have registered from another device; the
		// server record recovers the contact details.
		if e.role == RoleGuest && !e.registered && rec.GuestName != "" && rec.GuestPhone != "" {
			e.guest.Name = rec.GuestName
			e.guest.Phone = rec.GuestPhone
			e.guest.Email = rec.GuestEmail
			e.guest.Company = rec.GuestCompany
			e.registered = true
			if e.state == StateRegistration {
				e.state = StateConnected
			}
			filled := e.guest
			fillGuest = &filled
		}
	}
	e.status = StatusConnected
	e.retryCount = 0
	e.mu.Unlock()

	if persist != nil {
		if err := e.deps.Cache.Save(e.pageID, guestID, persist); err != nil {
			log.Warn().Err(err).Msg("conversation cache persist failed")
		}
	}
	if fillGuest != nil {
		if err := e.deps.Identity.SaveGuestInfo(e.pageID, *fillGuest); err != nil {
			log.Warn().Err(err).Msg("recovered guest info persist failed")
		}
	}
	return nil
}

func (e *Engine) loadThreads(ctx context.Context) error {
	var records []entities.ConversationRecord
	err := retry.Do(ctx, e.deps.Retry, e.deps.Sleep, func() error {
		found, err := e.deps.API.ListThreads(ctx, e.pageID)
		if err != nil {
			return err
		}
		records = found
		return nil
	})
	if err != nil {
		// Keep whatever thread list is already displayed.
		e.mu.Lock()
		e.status = StatusError
		e.retryCount++
		e.mu.Unlock()
		log.Warn().Err(err).Str("page_id", e.pageID).Msg("thread list load failed")
		return err
	}

	threads := make([]entities.AdminThread, 0, len(records))
	for _, rec := range records {
		if entities.IsSettingsRecord(rec.GuestID) {
			continue
		}
		threads = append(threads, entities.ThreadSummary(rec))
	}

	e.mu.Lock()
	e.threads = threads
	e.status = StatusConnected
	e.retryCount = 0
	e.mu.Unlock()
	return nil
}

// StartPolling re-runs the load every PollInterval until Close. A tick is
// skipped while the previous cycle's network call is still in flight, so slow
// backends don't stack overlapping merges.
func (e *Engine) StartPolling() {
	e.mu.Lock()
	if e.pollStop != nil {
		e.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	e.pollStop = stop
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.deps.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.mu.Lock()
				if e.pollBusy {
					e.mu.Unlock()
					continue
				}
				e.pollBusy = true
				e.mu.Unlock()

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				_ = e.LoadConversation(ctx)
				cancel()

				e.mu.Lock()
				e.pollBusy = false
				e.mu.Unlock()
			}
		}
	}()
}

// Close cancels polling. In-flight fetches finish on their own; their results
// are simply no longer consumed.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.pollStop != nil {
		close(e.pollStop)
		e.pollStop = nil
	}
	e.mu.Unlock()
}

// Register validates and persists the guest's contact details, flips the
// session to connected and creates the remote record with an empty message
// list. The create is fire-and-forget: registration succeeds locally even if
// the backend is down.
func (e *Engine) Register(ctx context.Context, name, phone, email, company string) error {
	if e.role != RoleGuest {
		return fmt.Errorf("register: only guest sessions register")
	}
	if !CanSubmitRegistration(name, phone, email) {
		return ErrInvalidRegistration
	}

	e.mu.Lock()
	e.guest.Name = strings.TrimSpace(name)
	e.guest.Phone = strings.TrimSpace(phone)
	e.guest.Email = strings.TrimSpace(email)
	e.guest.Company = strings.TrimSpace(company)
	e.registered = true
	e.state = StateConnected
	info := e.guest
	e.mu.Unlock()

	if err := e.deps.Identity.SaveGuestInfo(e.pageID, info); err != nil {
		log.Warn().Err(err).Msg("guest info persist failed")
	}

	id, err := e.deps.API.CreateConversation(ctx, &entities.ConversationRecord{
		GuestID:      info.GuestID,
		PageID:       e.pageID,
		GuestName:    info.Name,
		GuestPhone:   info.Phone,
		GuestEmail:   info.Email,
		GuestCompany: info.Company,
	}, true)
	if err != nil {
		log.Warn().Err(err).Str("page_id", e.pageID).Msg("conversation create failed, will retry on first send")
		return nil
	}

	e.mu.Lock()
	e.recordID = id
	e.mu.Unlock()
	return nil
}

// SendMessage appends the text optimistically, syncs it to the backend with a
// single attempt, and — for guest senders with AI enabled — runs the AI turn.
// Empty text, an in-flight send, or an unregistered guest with no record are
// silent no-ops.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	e.mu.Lock()
	if e.phase != PhaseIdle {
		e.mu.Unlock()
		return nil
	}
	if e.role == RoleGuest && !e.registered && e.recordID == 0 {
		e.mu.Unlock()
		return nil
	}
	if e.role == RoleAdmin && e.selectedGuest == "" {
		e.mu.Unlock()
		return nil
	}

	sender := entities.SenderGuest
	if e.role == RoleAdmin {
		sender = entities.SenderPage
	}
	msg := entities.Message{
		ID:     e.nextMessageIDLocked(),
		Text:   text,
		Sender: sender,
		Time:   e.deps.Now().UTC().Format(time.RFC3339),
	}
	e.messages = append(e.messages, msg)
	snapshot := copyMessages(e.messages)
	recordID := e.recordID
	guestName := e.guest.Name
	aiTurn := e.role == RoleGuest && e.aiEnabledLocked()
	e.phase = PhaseSending
	e.mu.Unlock()

	guestID := e.conversationGuestID()
	if err := e.deps.Cache.Save(e.pageID, guestID, snapshot); err != nil {
		log.Warn().Err(err).Msg("conversation cache persist failed")
	}

	// Single-attempt write. Failure keeps the optimistic local message; the
	// next successful poll reconciles.
	if recordID != 0 {
		if err := e.deps.API.UpdateMessages(ctx, recordID, snapshot); err != nil {
			log.Warn().Err(err).Int("record_id", recordID).Msg("message sync failed")
		}
	} else {
		e.mu.Lock()
		info := e.guest
		e.mu.Unlock()
		id, err := e.deps.API.CreateConversation(ctx, &entities.ConversationRecord{
			GuestID:      guestID,
			PageID:       e.pageID,
			GuestName:    info.Name,
			GuestPhone:   info.Phone,
			GuestEmail:   info.Email,
			GuestCompany: info.Company,
			Messages:     snapshot,
		}, false)
		if err != nil {
			log.Warn().Err(err).Msg("conversation create on send failed")
		} else {
			e.mu.Lock()
			e.recordID = id
			e.mu.Unlock()
		}
	}

	e.mu.Lock()
	e.phase = PhaseIdle
	e.mu.Unlock()

	if !aiTurn {
		if e.deps.Notifier != nil && sender == entities.SenderGuest {
			e.deps.Notifier.NotifyHandoff(e.pageID, guestName, text)
		}
		return nil
	}

	e.runAITurn(ctx, guestID)
	return nil
}

// runAITurn calls the AI bridge with the updated history and appends its
// reply. AI failure just means no reply is appended; the phase always clears.
func (e *Engine) runAITurn(ctx context.Context, guestID string) {
	e.mu.Lock()
	e.phase = PhaseAwaitingAI
	history := copyMessages(e.messages)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.phase = PhaseIdle
		e.mu.Unlock()
	}()

	result, err := e.deps.Bridge.Complete(ctx, history, e.deps.Data.Context(), e.deps.Data.ActiveSource())
	if err != nil || result == nil || result.Text == "" {
		log.Debug().Err(err).Str("page_id", e.pageID).Msg("no ai reply produced")
		return
	}

	items := e.deps.Bridge.AutoLink(result.Text, result.Items, e.deps.Data.FindItemsByTitle)

	e.mu.Lock()
	reply := entities.Message{
		ID:          e.nextMessageIDLocked(),
		Text:        result.Text,
		Sender:      entities.SenderPage,
		Time:        e.deps.Now().UTC().Format(time.RFC3339),
		Items:       items,
		DisplayType: displayTypeFor(len(items)),
		AnswerID:    result.AnswerID,
	}
	e.messages = append(e.messages, reply)
	snapshot := copyMessages(e.messages)
	recordID := e.recordID
	e.mu.Unlock()

	if err := e.deps.Cache.Save(e.pageID, guestID, snapshot); err != nil {
		log.Warn().Err(err).Msg("conversation cache persist failed")
	}
	if recordID != 0 {
		if err := e.deps.API.UpdateMessages(ctx, recordID, snapshot); err != nil {
			log.Warn().Err(err).Int("record_id", recordID).Msg("ai reply sync failed")
		}
	}
}

// DeleteMessage removes one message locally and fire-and-forgets the new list
// to the backend. Requires explicit confirmation and a known record id.
func (e *Engine) DeleteMessage(ctx context.Context, messageID string, confirmed bool) error {
	if !confirmed {
		return nil
	}

	e.mu.Lock()
	if e.recordID == 0 {
		e.mu.Unlock()
		return nil
	}
	kept := e.messages[:0:0]
	for _, msg := range e.messages {
		if msg.ID != messageID {
			kept = append(kept, msg)
		}
	}
	if len(kept) == len(e.messages) {
		e.mu.Unlock()
		return nil
	}
	e.messages = kept
	snapshot := copyMessages(e.messages)
	recordID := e.recordID
	e.mu.Unlock()

	guestID := e.conversationGuestID()
	if err := e.deps.Cache.Save(e.pageID, guestID, snapshot); err != nil {
		log.Warn().Err(err).Msg("conversation cache persist failed")
	}
	if err := e.deps.API.UpdateMessages(ctx, recordID, snapshot); err != nil {
		log.Warn().Err(err).Int("record_id", recordID).Msg("message delete sync failed")
	}
	return nil
}

// SendFeedback reports thumbs up/down on an AI answer. Only messages carrying
// an answer id qualify, and FeedbackGiven is set only after the backend
// acknowledged, so a rejected click can simply be retried.
func (e *Engine) SendFeedback(ctx context.Context, messageID string, positive bool) bool {
	e.mu.Lock()
	var answerID *int
	for i := range e.messages {
		if e.messages[i].ID == messageID {
			answerID = e.messages[i].AnswerID
			break
		}
	}
	e.mu.Unlock()
	if answerID == nil {
		return false
	}

	if !e.deps.Bridge.SendFeedback(ctx, *answerID, positive) {
		return false
	}

	verdict := entities.FeedbackPositive
	if !positive {
		verdict = entities.FeedbackNegative
	}
	e.mu.Lock()
	for i := range e.messages {
		if e.messages[i].ID == messageID {
			e.messages[i].FeedbackGiven = verdict
			break
		}
	}
	snapshot := copyMessages(e.messages)
	e.mu.Unlock()

	if err := e.deps.Cache.Save(e.pageID, e.conversationGuestID(), snapshot); err != nil {
		log.Warn().Err(err).Msg("conversation cache persist failed")
	}
	return true
}

// ToggleAI flips the AI auto-reply. With a thread selected it writes the
// per-conversation override only; otherwise it writes the tenant-global
// setting. This lets an admin silence the AI for one escalated conversation
// without disabling it tenant-wide.
func (e *Engine) ToggleAI(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	perConversation := e.role == RoleAdmin && e.selectedGuest != "" && e.recordID != 0
	recordID := e.recordID
	e.mu.Unlock()

	if perConversation {
		if err := e.deps.API.UpdateAIActive(ctx, recordID, enabled); err != nil {
			log.Warn().Err(err).Int("record_id", recordID).Msg("per-conversation ai toggle failed")
			return err
		}
		e.mu.Lock()
		override := enabled
		e.aiOverride = &override
		e.mu.Unlock()
		return nil
	}

	if err := e.deps.Settings.SetAIEnabled(ctx, e.pageID, enabled); err != nil {
		log.Warn().Err(err).Str("page_id", e.pageID).Msg("tenant ai toggle failed")
		return err
	}
	e.mu.Lock()
	e.aiGlobal = enabled
	e.mu.Unlock()
	return nil
}

// SelectThread points an admin session at one guest's conversation and loads it.
func (e *Engine) SelectThread(ctx context.Context, guestID string) error {
	if e.role != RoleAdmin {
		return fmt.Errorf("select thread: admin sessions only")
	}
	e.mu.Lock()
	e.selectedGuest = guestID
	e.state = StateThreadSelected
	e.messages = nil
	e.recordID = 0
	e.aiOverride = nil
	e.mu.Unlock()
	return e.LoadConversation(ctx)
}

// ClearSelection returns an admin session to the thread list.
func (e *Engine) ClearSelection(ctx context.Context) error {
	if e.role != RoleAdmin {
		return fmt.Errorf("clear selection: admin sessions only")
	}
	e.mu.Lock()
	e.selectedGuest = ""
	e.state = StateThreadListing
	e.messages = nil
	e.recordID = 0
	e.aiOverride = nil
	e.mu.Unlock()
	return e.loadThreads(ctx)
}

// DeleteThread removes a guest's whole conversation record. Admin only,
// confirmation required. Deleting the selected thread resets the selection
// before the list reloads.
func (e *Engine) DeleteThread(ctx context.Context, guestID string, confirmed bool) error {
	if e.role != RoleAdmin || !confirmed {
		return nil
	}

	e.mu.Lock()
	recordID := 0
	if guestID == e.selectedGuest {
		recordID = e.recordID
	}
	if recordID == 0 {
		for _, t := range e.threads {
			if t.GuestID == guestID {
				recordID = t.RecordID
				break
			}
		}
	}
	wasSelected := guestID == e.selectedGuest
	e.mu.Unlock()

	if recordID == 0 {
		return nil
	}
	if err := e.deps.API.DeleteConversation(ctx, recordID); err != nil {
		log.Warn().Err(err).Int("record_id", recordID).Msg("thread delete failed")
		return err
	}

	if wasSelected {
		e.mu.Lock()
		e.selectedGuest = ""
		e.messages = nil
		e.recordID = 0
		e.aiOverride = nil
		e.state = StateThreadListing
		e.mu.Unlock()
	}
	return e.loadThreads(ctx)
}

// EndSession wipes everything the guest's device remembers: identity, contact
// details and the cached conversation. Server-side data stays. Irreversible.
func (e *Engine) EndSession() {
	e.Close()

	e.mu.Lock()
	guestID := e.guest.GuestID
	e.guest = entities.GuestIdentity{}
	e.registered = false
	e.messages = nil
	e.recordID = 0
	e.state = StateUninitialized
	e.mu.Unlock()

	if err := e.deps.Identity.ClearGuestInfo(e.pageID); err != nil {
		log.Warn().Err(err).Msg("guest identity wipe failed")
	}
	if guestID != "" {
		if err := e.deps.Cache.Clear(e.pageID, guestID); err != nil {
			log.Warn().Err(err).Msg("conversation cache wipe failed")
		}
	}
}

// Snapshot is the read model the presentation layer renders from.
type Snapshot struct {
	State         string                 `json:"state"`
	Phase         string                 `json:"phase"`
	Status        ConnectionStatus       `json:"connectionStatus"`
	RetryCount    int                    `json:"retryCount"`
	Registered    bool                   `json:"registered"`
	Guest         entities.GuestIdentity `json:"guest"`
	Messages      []entities.Message     `json:"messages"`
	AIEnabled     bool                   `json:"aiEnabled"`
	SelectedGuest string                 `json:"selectedGuest,omitempty"`
	Threads       []entities.AdminThread `json:"threads,omitempty"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:         e.state.String(),
		Phase:         e.phase.String(),
		Status:        e.status,
		RetryCount:    e.retryCount,
		Registered:    e.registered,
		Guest:         e.guest,
		Messages:      copyMessages(e.messages),
		AIEnabled:     e.aiEnabledUnsafe(),
		SelectedGuest: e.selectedGuest,
		Threads:       append([]entities.AdminThread(nil), e.threads...),
	}
}

// Messages returns a copy of the current message list.
func (e *Engine) Messages() []entities.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyMessages(e.messages)
}

func (e *Engine) aiEnabledLocked() bool {
	return e.aiEnabledUnsafe()
}

// aiEnabledUnsafe must be called with e.mu held.
func (e *Engine) aiEnabledUnsafe() bool {
	if e.aiOverride != nil {
		return *e.aiOverride
	}
	return e.aiGlobal
}

// nextMessageIDLocked builds a timestamp-based id, bumped when two messages
// land in the same millisecond. Must be called with e.mu held.
func (e *Engine) nextMessageIDLocked() string {
	id := e.deps.Now().UnixMilli()
	if id <= e.lastMsgID {
		id = e.lastMsgID + 1
	}
	e.lastMsgID = id
	return fmt.Sprintf("%d", id)
}

func displayTypeFor(itemCount int) string {
	switch {
	case itemCount >= 3:
		return "carousel"
	case itemCount >= 1:
		return "list"
	default:
		return ""
	}
}

func copyMessages(messages []entities.Message) []entities.Message {
	if messages == nil {
		return nil
	}
	return append([]entities.Message(nil), messages...)
}
