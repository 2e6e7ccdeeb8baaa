// Package memory is a process-local ledger store. It honours the same locking
// contract as the Postgres store (per-account and per-user locks held until
// the unit of work ends) and backs engine tests and LEDGER_DRIVER=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[int64]domain.Account
	numbers  map[string]int64
	txs      []domain.Transaction
	txIndex  map[int64]int
	audit    []ledger.AuditEntry

	users  map[int64]domain.User
	logins map[string]int64
	phones map[string]int64
	banks  map[int64][]string
	failed map[int64]int

	nextAccountID int64
	nextTxID      int64
	nextUserID    int64

	accountLocks keyedLocks
	userLocks    keyedLocks
}

func New() *Store {
	return &Store{
		accounts:     make(map[int64]domain.Account),
		numbers:      make(map[string]int64),
		txIndex:      make(map[int64]int),
		users:        make(map[int64]domain.User),
		logins:       make(map[string]int64),
		phones:       make(map[string]int64),
		banks:        make(map[int64][]string),
		failed:       make(map[int64]int),
		accountLocks: keyedLocks{locks: make(map[int64]chan struct{})},
		userLocks:    keyedLocks{locks: make(map[int64]chan struct{})},
	}
}

// RunInTx runs fn in a unit of work. Writes are staged on the tx and only
// applied to the store when fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	t := newTx(s)
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
		t.release()
	}()

	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	committed = true
	return nil
}

func (s *Store) Reader() ledger.Reader {
	return &view{s: s}
}

// AuditLog returns a copy of the committed audit entries.
func (s *Store) AuditLog() []ledger.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// keyedLocks hands out one binary semaphore per id so lock waits can honour
// context cancellation.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[int64]chan struct{}
}

func (k *keyedLocks) acquire(ctx context.Context, id int64) (func(), error) {
	k.mu.Lock()
	ch, ok := k.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		k.locks[id] = ch
	}
	k.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("lock %d: %w", id, domain.ErrConcurrencyConflict)
	}
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	login := strings.ToLower(u.Login)
	if _, ok := s.logins[login]; ok {
		return domain.User{}, domain.ErrLoginTaken
	}
	if u.Phone != "" {
		if _, ok := s.phones[u.Phone]; ok {
			return domain.User{}, domain.ErrPhoneTaken
		}
	}
	s.nextUserID++
	u.ID = s.nextUserID
	if u.Role == "" {
		u.Role = domain.RoleClient
	}
	if u.Status == "" {
		u.Status = domain.UserStatusActive
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	s.logins[login] = u.ID
	if u.Phone != "" {
		s.phones[u.Phone] = u.ID
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) GetUserByLogin(ctx context.Context, login string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.logins[strings.ToLower(login)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.phones[phone]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) SetUserStatus(ctx context.Context, id int64, status domain.UserStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Status = status
	s.users[id] = u
	return nil
}

func (s *Store) ListUserBanks(ctx context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[userID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	out := append([]string(nil), s.banks[userID]...)
	sort.Strings(out)
	return out, nil
}

func (s *Store) SetUserBanks(ctx context.Context, userID int64, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	s.banks[userID] = append([]string(nil), codes...)
	return nil
}

// RecordFailedLogin mirrors the Postgres store: the threshold-th consecutive
// failure blocks the user.
func (s *Store) RecordFailedLogin(ctx context.Context, id int64, threshold int) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	s.failed[id]++
	if threshold > 0 && s.failed[id] >= threshold {
		u.Status = domain.UserStatusBlocked
		s.users[id] = u
	}
	return u, nil
}

func (s *Store) ResetFailedLogins(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failed, id)
	return nil
}
