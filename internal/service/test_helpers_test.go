package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
	"github.com/ayo6706/retail-ledger/internal/ledger/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const validOTP = "1234"

// fakeOTP accepts a single fixed code.
type fakeOTP struct {
	calls atomic.Int32
}

func (f *fakeOTP) Verify(_ context.Context, _ int64, code string) (bool, error) {
	f.calls.Add(1)
	return code == validOTP, nil
}

type recordingSink struct {
	mu  sync.Mutex
	txs []domain.Transaction
}

func (r *recordingSink) TransactionCompleted(_ context.Context, tx domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, tx)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txs)
}

type fixture struct {
	store     *memory.Store
	otp       *fakeOTP
	sink      *recordingSink
	transfers *TransferService
	accounts  *AccountService
	reports   *ReportService
	auth      *AuthService

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T, tweaks ...func(*Policy)) *fixture {
	t.Helper()
	policy := DefaultPolicy()
	for _, tweak := range tweaks {
		tweak(&policy)
	}
	f := &fixture{
		store: memory.New(),
		otp:   &fakeOTP{},
		sink:  &recordingSink{},
		now:   time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	f.transfers = NewTransferService(f.store, f.store, f.otp, f.sink, policy).WithClock(f.clock)
	f.accounts = NewAccountService(f.store, policy)
	f.reports = NewReportService(f.store)
	f.auth = NewAuthService(f.store, 3).WithBcryptCost(bcrypt.MinCost).WithBankPicker(func() []string { return nil })
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

var userSeq atomic.Int64

// client creates an active client with a unique login and phone.
func (f *fixture) client(t *testing.T) domain.Actor {
	t.Helper()
	n := userSeq.Add(1)
	u, err := f.store.CreateUser(context.Background(), domain.User{
		Login:        fmt.Sprintf("client%06d", n),
		PasswordHash: "x",
		Role:         domain.RoleClient,
		Status:       domain.UserStatusActive,
		Phone:        fmt.Sprintf("+7900%07d", n),
	})
	require.NoError(t, err)
	return domain.ActorFromUser(u)
}

func (f *fixture) admin(t *testing.T) domain.Actor {
	t.Helper()
	n := userSeq.Add(1)
	u, err := f.store.CreateUser(context.Background(), domain.User{
		Login:        fmt.Sprintf("admin%06d", n),
		PasswordHash: "x",
		Role:         domain.RoleAdmin,
		Status:       domain.UserStatusActive,
	})
	require.NoError(t, err)
	return domain.ActorFromUser(u)
}

func (f *fixture) phone(t *testing.T, actor domain.Actor) string {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), actor.UserID)
	require.NoError(t, err)
	return u.Phone
}

// account opens an account and funds it through the helper top-up, which
// does not touch the daily limit.
func (f *fixture) account(t *testing.T, owner domain.Actor, typ domain.AccountType, cur domain.Currency, balance domain.Amount) domain.Account {
	t.Helper()
	ctx := context.Background()
	acc, err := f.accounts.Open(ctx, owner, typ, cur)
	require.NoError(t, err)
	if balance > 0 {
		_, err = f.transfers.Credit(ctx, Credit{Actor: owner, AccountID: acc.ID, Amount: balance, Reason: domain.TopUpHelper})
		require.NoError(t, err)
		acc.Balance = balance
	}
	return acc
}

func (f *fixture) balance(t *testing.T, id int64) domain.Amount {
	t.Helper()
	acc, err := f.store.Reader().GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func (f *fixture) transactionCount(t *testing.T, userID int64) int {
	t.Helper()
	txs, err := f.store.Reader().ListTransactions(context.Background(), ledger.TransactionFilter{UserID: userID})
	require.NoError(t, err)
	return len(txs)
}

func rub(units int64) domain.Amount {
	return domain.Amount(units * 100)
}
