package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
	"github.com/ayo6706/retail-ledger/internal/repository"
	"github.com/ayo6706/retail-ledger/internal/testutil/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_FirstOfCurrencyIsPrimary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)

	first, err := f.accounts.Open(ctx, alice, domain.AccountTypeChecking, domain.CurrencyRUB)
	require.NoError(t, err)
	second, err := f.accounts.Open(ctx, alice, domain.AccountTypeSavings, domain.CurrencyRUB)
	require.NoError(t, err)

	assert.True(t, first.Primary)
	assert.False(t, second.Primary)
	assert.Zero(t, first.Balance)
	assert.True(t, first.Active)
	assert.True(t, domain.ValidAccountNumber(first.Number))
	assert.Equal(t, "2202", first.Number[:4])

	entries := f.store.AuditLog()
	require.NotEmpty(t, entries)
	assert.Equal(t, "account_opened", entries[0].Action)
	assert.Equal(t, first.ID, entries[0].EntityID)
}

func TestOpen_Caps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)

	for range 3 {
		_, err := f.accounts.Open(ctx, alice, domain.AccountTypeChecking, domain.CurrencyRUB)
		require.NoError(t, err)
	}
	_, err := f.accounts.Open(ctx, alice, domain.AccountTypeChecking, domain.CurrencyRUB)
	assert.ErrorIs(t, err, domain.ErrAccountLimitExceeded)

	for _, c := range []domain.Currency{domain.CurrencyUSD, domain.CurrencyEUR, domain.CurrencyCNY} {
		_, err := f.accounts.Open(ctx, alice, domain.AccountTypeChecking, c)
		require.NoError(t, err)
	}
	_, err = f.accounts.Open(ctx, alice, domain.AccountTypeSavings, domain.CurrencyUSD)
	assert.ErrorIs(t, err, domain.ErrAccountLimitExceeded)

	// A closed account frees its slot.
	accounts, err := f.accounts.List(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, f.accounts.Close(ctx, alice, accounts[0].ID))
	_, err = f.accounts.Open(ctx, alice, domain.AccountTypeChecking, accounts[0].Currency)
	assert.NoError(t, err)
}

func TestOpen_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)

	_, err := f.accounts.Open(ctx, alice, "CREDIT", domain.CurrencyRUB)
	assert.ErrorIs(t, err, domain.ErrInvalidAccountType)
	_, err = f.accounts.Open(ctx, alice, domain.AccountTypeChecking, "GBP")
	assert.ErrorIs(t, err, domain.ErrCurrencyNotSupported)

	alice.Blocked = true
	_, err = f.accounts.Open(ctx, alice, domain.AccountTypeChecking, domain.CurrencyRUB)
	assert.ErrorIs(t, err, domain.ErrUserBlocked)
}

func TestOpen_RetriesNumberCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)

	numbers := []string{"2202000000000001", "2202000000000001", "2202000000000002"}
	f.accounts.WithNumberGenerator(func(domain.Currency) string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	})

	first, err := f.accounts.Open(ctx, alice, domain.AccountTypeChecking, domain.CurrencyRUB)
	require.NoError(t, err)
	second, err := f.accounts.Open(ctx, alice, domain.AccountTypeChecking, domain.CurrencyRUB)
	require.NoError(t, err)

	assert.Equal(t, "2202000000000001", first.Number)
	assert.Equal(t, "2202000000000002", second.Number)
	assert.Empty(t, numbers)
}

func TestOpen_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)
	f.accounts.WithNumberGenerator(func(domain.Currency) string { return "2202000000000001" })

	_, err := f.accounts.Open(ctx, alice, domain.AccountTypeChecking, domain.CurrencyRUB)
	require.NoError(t, err)
	_, err = f.accounts.Open(ctx, alice, domain.AccountTypeChecking, domain.CurrencyRUB)
	assert.ErrorIs(t, err, domain.ErrAccountNumberTaken)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	funded := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(5))
	empty := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	assert.ErrorIs(t, f.accounts.Close(ctx, alice, funded.ID), domain.ErrCloseRequiresZeroBalance)
	assert.ErrorIs(t, f.accounts.Close(ctx, bob, empty.ID), domain.ErrAccountNotFound)
	require.NoError(t, f.accounts.Close(ctx, alice, empty.ID))
	assert.ErrorIs(t, f.accounts.Close(ctx, alice, empty.ID), domain.ErrAccountAlreadyClosed)

	listed, err := f.accounts.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, funded.ID, listed[0].ID)

	// Closed accounts stay readable for history.
	acc, err := f.accounts.Get(ctx, alice, empty.ID)
	require.NoError(t, err)
	assert.False(t, acc.Active)
}

func TestSetPrimary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	first := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)
	second := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	updated, err := f.accounts.SetPrimary(ctx, alice, second.ID)
	require.NoError(t, err)
	assert.True(t, updated.Primary)

	reloaded, err := f.accounts.Get(ctx, alice, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Primary)

	_, err = f.accounts.SetPrimary(ctx, bob, first.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSetPrimary_ConcurrentWithTransfers(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		f := newFixture(t)
		runSetPrimaryAgainstTransfers(t, f.store, f.accounts, f.transfers, f.client(t))
	})
	t.Run("postgres", func(t *testing.T) {
		pool := pgtest.Pool(t)
		store := repository.NewStore(pool, 5*time.Second)
		users := repository.NewUsers(pool)
		u, err := users.CreateUser(context.Background(), domain.User{Login: "primary01", PasswordHash: "x", Role: domain.RoleClient, Status: domain.UserStatusActive})
		require.NoError(t, err)
		runSetPrimaryAgainstTransfers(t, store,
			NewAccountService(store, DefaultPolicy()),
			NewTransferService(store, users, &fakeOTP{}, nil, DefaultPolicy()),
			domain.ActorFromUser(u))
	})
}

// runSetPrimaryAgainstTransfers flips the primary account while money moves
// both ways between the same accounts. Every call must succeed: a lock-order
// inversion would surface as a deadlock or concurrency_conflict.
func runSetPrimaryAgainstTransfers(t *testing.T, store ledger.Store, accounts *AccountService, transfers *TransferService, owner domain.Actor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var accs []domain.Account
	for range 3 {
		acc, err := accounts.Open(ctx, owner, domain.AccountTypeChecking, domain.CurrencyRUB)
		require.NoError(t, err)
		_, err = transfers.Credit(ctx, Credit{Actor: owner, AccountID: acc.ID, Amount: rub(1000), Reason: domain.TopUpHelper})
		require.NoError(t, err)
		accs = append(accs, acc)
	}
	low, high := accs[0], accs[2]

	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			switch i % 3 {
			case 0:
				_, err = accounts.SetPrimary(ctx, owner, accs[(i/3)%3].ID)
			case 1:
				_, err = transfers.Internal(ctx, InternalTransfer{Actor: owner, FromAccountID: low.ID, ToAccountID: high.ID, Amount: rub(15)})
			default:
				_, err = transfers.Internal(ctx, InternalTransfer{Actor: owner, FromAccountID: high.ID, ToAccountID: low.ID, Amount: rub(15)})
			}
			assert.NoError(t, err, fmt.Sprintf("operation %d", i))
		}()
	}
	wg.Wait()

	var total domain.Amount
	primaries := 0
	for _, a := range accs {
		acc, err := store.Reader().GetAccount(ctx, a.ID)
		require.NoError(t, err)
		total += acc.Balance
		if acc.Primary {
			primaries++
		}
	}
	assert.Equal(t, rub(3000), total)
	assert.Equal(t, 1, primaries)
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, admin := f.client(t), f.client(t), f.admin(t)
	acc := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	_, err := f.accounts.Get(ctx, bob, acc.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = f.accounts.Get(ctx, admin, acc.ID)
	assert.NoError(t, err)
	_, err = f.accounts.Get(ctx, alice, 9999)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
