package repository

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"pagechat/internal/entities"
	"pagechat/internal/kvstore"
)

// IdentityStore persists the anonymous visitor identity per tenant: a
// once-generated guest token plus whatever contact details the guest entered
// on registration. Single writer, no locking needed beyond the store's own.
type IdentityStore struct {
	kv kvstore.Store
}

func NewIdentityStore(kv kvstore.Store) *IdentityStore {
	return &IdentityStore{kv: kv}
}

// NewGuestID mints a fresh guest token. The token is random but makes no
// cryptographic-uniqueness promise.
func NewGuestID() string {
	return "guest_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetOrCreateGuestID returns the persisted guest token for a tenant,
// generating and storing one on first call. Idempotent; repeat calls perform
// no second write.
func (s *IdentityStore) GetOrCreateGuestID(pageID string) (string, error) {
	if id, ok := s.kv.Get(guestIDKey(pageID)); ok && id != "" {
		return id, nil
	}
	id := NewGuestID()
	if err := s.kv.Set(guestIDKey(pageID), id); err != nil {
		return "", err
	}
	return id, nil
}

// AdoptGuestID seeds the store with a token a client already holds, so a
// returning device keeps its identity across hosts. A token already present
// wins.
func (s *IdentityStore) AdoptGuestID(pageID, guestID string) error {
	if existing, ok := s.kv.Get(guestIDKey(pageID)); ok && existing != "" {
		return nil
	}
	return s.kv.Set(guestIDKey(pageID), guestID)
}

// StoredGuestInfo returns the saved contact details, with empty strings for
// anything absent. It never fails; a corrupt blob reads as empty.
func (s *IdentityStore) StoredGuestInfo(pageID string) entities.GuestIdentity {
	var info entities.GuestIdentity
	if raw, ok := s.kv.Get(guestInfoKey(pageID)); ok {
		_ = json.Unmarshal([]byte(raw), &info)
	}
	if id, ok := s.kv.Get(guestIDKey(pageID)); ok {
		info.GuestID = id
	}
	return info
}

func (s *IdentityStore) SaveGuestInfo(pageID string, info entities.GuestIdentity) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.kv.Set(guestInfoKey(pageID), string(raw))
}

// ClearGuestInfo removes identity and contact details. Only End Session
// calls this; the guest token is otherwise kept indefinitely.
func (s *IdentityStore) ClearGuestInfo(pageID string) error {
	if err := s.kv.Delete(guestInfoKey(pageID)); err != nil {
		return err
	}
	return s.kv.Delete(guestIDKey(pageID))
}
