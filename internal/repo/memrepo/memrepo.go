// Package memrepo holds in-process implementations of the repo interfaces.
// Sessions can back a single-instance deployment (SESSION_STORE=memory);
// accounts back service and handler tests.
package memrepo

import (
	"context"
	"sync"
	"time"

	"github.com/storefront/identity/internal/model"
	"github.com/storefront/identity/internal/repo"
)

// Accounts is a mutex-guarded AccountRepo with the same uniqueness rules as
// the accounts table.
type Accounts struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]model.Account
	now    func() time.Time
}

var _ repo.AccountRepo = (*Accounts)(nil)

func NewAccounts() *Accounts {
	return &Accounts{byID: make(map[int64]model.Account), now: time.Now}
}

func (s *Accounts) GetByID(_ context.Context, id int64) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return model.Account{}, repo.ErrNotFound
	}
	return clone(a), nil
}

func (s *Accounts) FindByEmail(_ context.Context, email string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Email != nil && *a.Email == email {
			return clone(a), nil
		}
	}
	return model.Account{}, repo.ErrNotFound
}

func (s *Accounts) FindByMobile(_ context.Context, mobile string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Mobile != nil && *a.Mobile == mobile {
			return clone(a), nil
		}
	}
	return model.Account{}, repo.ErrNotFound
}

func (s *Accounts) ExistsByEmail(_ context.Context, email string, verifiedOnly bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Email == nil || *a.Email != email {
			continue
		}
		if !verifiedOnly || (a.IsEmailVerified && a.IsActive) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Accounts) ExistsByMobile(_ context.Context, mobile string, verifiedOnly bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Mobile == nil || *a.Mobile != mobile {
			continue
		}
		if !verifiedOnly || (a.IsMobileVerified && a.IsActive) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Accounts) Create(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.takenLocked(0, a) {
		return repo.ErrConflict
	}
	if a.Role == "" {
		a.Role = model.RoleUser
	}
	s.nextID++
	now := s.now()
	a.ID = s.nextID
	a.CreatedAt = now
	a.UpdatedAt = now
	s.byID[a.ID] = clone(*a)
	return nil
}

func (s *Accounts) Update(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; !ok {
		return repo.ErrNotFound
	}
	if s.takenLocked(a.ID, a) {
		return repo.ErrConflict
	}
	a.UpdatedAt = s.now()
	s.byID[a.ID] = clone(*a)
	return nil
}

func (s *Accounts) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	a.LastLoggedInAt = &at
	s.byID[id] = a
	return nil
}

// Put stores a fully formed account, bypassing Create. Tests use it to seed
// disabled or pre-verified accounts.
func (s *Accounts) Put(a model.Account) model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextID++
		a.ID = s.nextID
	} else if a.ID > s.nextID {
		s.nextID = a.ID
	}
	s.byID[a.ID] = clone(a)
	return a
}

func (s *Accounts) takenLocked(selfID int64, a *model.Account) bool {
	for id, other := range s.byID {
		if id == selfID {
			continue
		}
		if a.Email != nil && other.Email != nil && *a.Email == *other.Email {
			return true
		}
		if a.Mobile != nil && other.Mobile != nil && *a.Mobile == *other.Mobile {
			return true
		}
	}
	return false
}

func clone(a model.Account) model.Account {
	a.Email = cloneString(a.Email)
	a.Mobile = cloneString(a.Mobile)
	a.PasswordHash = cloneString(a.PasswordHash)
	if a.LastLoggedInAt != nil {
		t := *a.LastLoggedInAt
		a.LastLoggedInAt = &t
	}
	return a
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Sessions is an in-process SessionRepo
type Sessions struct {
	mu     sync.RWMutex
	tokens map[int64]string
}

var _ repo.SessionRepo = (*Sessions)(nil)

func NewSessions() *Sessions {
	return &Sessions{tokens: make(map[int64]string)}
}

func (s *Sessions) Upsert(_ context.Context, accountID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[accountID] = token
	return nil
}

func (s *Sessions) Exists(_ context.Context, accountID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[accountID]
	return ok, nil
}

func (s *Sessions) Token(_ context.Context, accountID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[accountID]
	if !ok {
		return "", repo.ErrNotFound
	}
	return token, nil
}

func (s *Sessions) Delete(_ context.Context, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, accountID)
	return nil
}

// Len returns the number of live markers
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
