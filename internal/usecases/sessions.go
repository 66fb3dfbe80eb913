package usecases

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pagechat/internal/interfaces"
	"pagechat/internal/kvstore"
	"pagechat/internal/repository"
	"pagechat/internal/retry"
)

// SessionManager hands out one Engine per (pageID, guestID, role) and one
// shared DataCacheService per page, so every session of a tenant reads the
// same catalog cache.
type SessionManager struct {
	kv       kvstore.Store
	api      interfaces.ConversationAPI
	catalog  interfaces.CatalogAPI
	ai       interfaces.AIAPI
	notifier interfaces.Notifier

	mu       sync.RWMutex
	sessions map[sessionKey]*Engine
	caches   map[string]*DataCacheService
	settings map[string]*TenantSettings
	idle     map[sessionKey]time.Time
}

type sessionKey struct {
	pageID  string
	guestID string
	role    Role
}

func NewSessionManager(kv kvstore.Store, api interfaces.ConversationAPI, catalog interfaces.CatalogAPI, ai interfaces.AIAPI, notifier interfaces.Notifier) *SessionManager {
	return &SessionManager{
		kv:       kv,
		api:      api,
		catalog:  catalog,
		ai:       ai,
		notifier: notifier,
		sessions: make(map[sessionKey]*Engine),
		caches:   make(map[string]*DataCacheService),
		settings: make(map[string]*TenantSettings),
		idle:     make(map[sessionKey]time.Time),
	}
}

// DataCache returns the page's shared catalog cache, creating it on first use.
func (sm *SessionManager) DataCache(pageID string) *DataCacheService {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.dataCacheLocked(pageID)
}

func (sm *SessionManager) dataCacheLocked(pageID string) *DataCacheService {
	cache, ok := sm.caches[pageID]
	if !ok {
		cache = NewDataCacheService(pageID, sm.catalog, repository.NewDataCacheRepo(sm.kv))
		sm.caches[pageID] = cache
	}
	return cache
}

func (sm *SessionManager) tenantSettingsLocked(pageID string) *TenantSettings {
	settings, ok := sm.settings[pageID]
	if !ok {
		settings = NewTenantSettings(sm.api)
		sm.settings[pageID] = settings
	}
	return settings
}

// GetOrCreateSession returns the live engine for the given widget identity,
// building and wiring a new one when none exists yet. guestID distinguishes
// concurrent guest devices; admin sessions pass the admin username.
func (sm *SessionManager) GetOrCreateSession(pageID, guestID string, role Role) *Engine {
	key := sessionKey{pageID: pageID, guestID: guestID, role: role}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if engine, ok := sm.sessions[key]; ok {
		sm.idle[key] = time.Now()
		return engine
	}

	// Each device gets its own identity slice of the shared store, keyed by
	// the guest token it presented; the contact details a guest saved on one
	// device don't leak into another visitor's widget.
	identityKV := kvstore.Store(sm.kv)
	if role == RoleGuest && guestID != "" {
		identityKV = kvstore.NewNamespaced(sm.kv, "device_"+guestID+"_")
	}
	identity := repository.NewIdentityStore(identityKV)
	if role == RoleGuest && guestID != "" {
		if err := identity.AdoptGuestID(pageID, guestID); err != nil {
			log.Warn().Err(err).Str("page_id", pageID).Msg("guest id adopt failed")
		}
	}
	dataCache := sm.dataCacheLocked(pageID)
	engine := NewEngine(pageID, role, EngineDeps{
		Identity: identity,
		Cache:    repository.NewConversationCache(sm.kv),
		Data:     dataCache,
		Bridge:   NewAIBridge(pageID, sm.ai, sm.catalog),
		API:      sm.api,
		Settings: sm.tenantSettingsLocked(pageID),
		Notifier: sm.notifier,
		Retry:    retry.ReadPolicy(),
	})
	sm.sessions[key] = engine
	sm.idle[key] = time.Now()
	return engine
}

// Remove closes and drops a session, e.g. after EndSession.
func (sm *SessionManager) Remove(pageID, guestID string, role Role) {
	key := sessionKey{pageID: pageID, guestID: guestID, role: role}
	sm.mu.Lock()
	engine, ok := sm.sessions[key]
	delete(sm.sessions, key)
	delete(sm.idle, key)
	sm.mu.Unlock()
	if ok {
		engine.Close()
	}
}

// ReapIdle closes sessions untouched for longer than maxIdle and returns how
// many it dropped. Run periodically so abandoned widgets stop polling.
func (sm *SessionManager) ReapIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	sm.mu.Lock()
	var stale []*Engine
	for key, touched := range sm.idle {
		if touched.Before(cutoff) {
			if engine, ok := sm.sessions[key]; ok {
				stale = append(stale, engine)
			}
			delete(sm.sessions, key)
			delete(sm.idle, key)
		}
	}
	sm.mu.Unlock()

	for _, engine := range stale {
		engine.Close()
	}
	return len(stale)
}
