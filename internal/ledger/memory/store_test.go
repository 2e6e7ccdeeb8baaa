package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAccount(t *testing.T, s *Store, userID int64, number string, cur domain.Currency, balance domain.Amount) domain.Account {
	t.Helper()
	var acc domain.Account
	err := s.RunInTx(context.Background(), func(tx ledger.Tx) error {
		var err error
		acc, err = tx.InsertAccount(context.Background(), domain.Account{
			Number:   number,
			UserID:   userID,
			Type:     domain.AccountTypeChecking,
			Currency: cur,
			Active:   true,
		})
		if err != nil || balance == 0 {
			return err
		}
		if _, err := tx.LockAccounts(context.Background(), acc.ID); err != nil {
			return err
		}
		_, err = tx.ApplyAndRecord(context.Background(), []ledger.BalanceDelta{{AccountID: acc.ID, Delta: balance}}, ledger.TransactionDraft{
			ToAccountID:    &acc.ID,
			Subkind:        domain.SubkindTopUpHelper,
			Amount:         balance,
			Currency:       cur,
			Credited:       balance,
			CreditCurrency: cur,
			InitiatedBy:    userID,
			CreatedAt:      time.Now(),
		})
		return err
	})
	require.NoError(t, err)
	acc.Balance = balance
	return acc
}

func move(ctx context.Context, s *Store, from, to domain.Account, amount domain.Amount) error {
	return s.RunInTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.LockAccounts(ctx, from.ID, to.ID); err != nil {
			return err
		}
		_, err := tx.ApplyAndRecord(ctx, []ledger.BalanceDelta{
			{AccountID: from.ID, Delta: -amount},
			{AccountID: to.ID, Delta: amount},
		}, ledger.TransactionDraft{
			FromAccountID:  &from.ID,
			ToAccountID:    &to.ID,
			Subkind:        domain.SubkindP2PTransfer,
			Amount:         amount,
			Currency:       from.Currency,
			Credited:       amount,
			CreditCurrency: to.Currency,
			InitiatedBy:    from.UserID,
			CreatedAt:      time.Now(),
		})
		return err
	})
}

func TestRunInTx_RollbackDiscardsWrites(t *testing.T) {
	s := New()
	a := openAccount(t, s, 1, "2202000000000001", domain.CurrencyRUB, 5000)

	boom := errors.New("boom")
	err := s.RunInTx(context.Background(), func(tx ledger.Tx) error {
		if _, err := tx.LockAccounts(context.Background(), a.ID); err != nil {
			return err
		}
		_, err := tx.ApplyAndRecord(context.Background(), []ledger.BalanceDelta{{AccountID: a.ID, Delta: -1000}}, ledger.TransactionDraft{
			FromAccountID: &a.ID,
			Subkind:       domain.SubkindMobilePayment,
			Amount:        1000,
			Currency:      domain.CurrencyRUB,
			InitiatedBy:   1,
		})
		require.NoError(t, err)

		inside, err := tx.GetAccount(context.Background(), a.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(4000), inside.Balance)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Reader().GetAccount(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(5000), got.Balance)

	txs, err := s.Reader().ListTransactions(context.Background(), ledger.TransactionFilter{UserID: 1})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestApplyAndRecord_RejectsNegativeBalance(t *testing.T) {
	s := New()
	a := openAccount(t, s, 1, "2202000000000001", domain.CurrencyRUB, 100)
	b := openAccount(t, s, 2, "2202000000000002", domain.CurrencyRUB, 0)

	err := move(context.Background(), s, a, b, 101)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestApplyAndRecord_RequiresLock(t *testing.T) {
	s := New()
	a := openAccount(t, s, 1, "2202000000000001", domain.CurrencyRUB, 100)

	err := s.RunInTx(context.Background(), func(tx ledger.Tx) error {
		_, err := tx.ApplyAndRecord(context.Background(), []ledger.BalanceDelta{{AccountID: a.ID, Delta: -1}}, ledger.TransactionDraft{
			FromAccountID: &a.ID, Subkind: domain.SubkindMobilePayment, Amount: 1, Currency: domain.CurrencyRUB,
		})
		return err
	})
	require.Error(t, err)
}

func TestInsertAccount_NumberTaken(t *testing.T) {
	s := New()
	openAccount(t, s, 1, "2202000000000001", domain.CurrencyRUB, 0)

	err := s.RunInTx(context.Background(), func(tx ledger.Tx) error {
		_, err := tx.InsertAccount(context.Background(), domain.Account{Number: "2202000000000001", UserID: 2, Currency: domain.CurrencyRUB, Active: true})
		return err
	})
	require.ErrorIs(t, err, domain.ErrAccountNumberTaken)
}

func TestOppositeTransfersDoNotDeadlock(t *testing.T) {
	s := New()
	a := openAccount(t, s, 1, "2202000000000001", domain.CurrencyRUB, 100000)
	b := openAccount(t, s, 2, "2202000000000002", domain.CurrencyRUB, 100000)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, move(ctx, s, a, b, 100))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, move(ctx, s, b, a, 100))
		}()
	}
	wg.Wait()

	totals, err := s.Reader().Totals(context.Background())
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, domain.Amount(200000), totals[0].Balances)
	assert.Equal(t, totals[0].Balances, totals[0].Net())
}

func TestLockAccounts_CancelledWaitIsConflict(t *testing.T) {
	s := New()
	a := openAccount(t, s, 1, "2202000000000001", domain.CurrencyRUB, 0)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.RunInTx(context.Background(), func(tx ledger.Tx) error {
			_, err := tx.LockAccounts(context.Background(), a.ID)
			close(held)
			<-done
			return err
		})
	}()
	<-held
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.RunInTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.LockAccounts(ctx, a.ID)
		return err
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestFindRecipientAccount_PrefersPrimary(t *testing.T) {
	s := New()
	first := openAccount(t, s, 7, "2202000000000001", domain.CurrencyRUB, 0)
	second := openAccount(t, s, 7, "2202000000000002", domain.CurrencyRUB, 0)

	got, err := s.Reader().FindRecipientAccount(context.Background(), 7, domain.CurrencyRUB)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	require.NoError(t, s.RunInTx(context.Background(), func(tx ledger.Tx) error {
		return tx.SetPrimary(context.Background(), 7, second.ID, domain.CurrencyRUB)
	}))
	got, err = s.Reader().FindRecipientAccount(context.Background(), 7, domain.CurrencyRUB)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = s.Reader().FindRecipientAccount(context.Background(), 7, domain.CurrencyUSD)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSumInitiated_WindowAndSubkinds(t *testing.T) {
	s := New()
	a := openAccount(t, s, 1, "2202000000000001", domain.CurrencyRUB, 10000)
	b := openAccount(t, s, 2, "2202000000000002", domain.CurrencyRUB, 0)
	require.NoError(t, move(context.Background(), s, a, b, 300))

	now := time.Now().UTC()
	sums, err := s.Reader().SumInitiated(context.Background(), 1, domain.LimitSubkinds(), now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(300), sums[domain.CurrencyRUB])

	sums, err = s.Reader().SumInitiated(context.Background(), 1, domain.LimitSubkinds(), now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, sums[domain.CurrencyRUB])
}

func TestTotals_ConsistentUnderConcurrentCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc := openAccount(t, s, 1, "4000000000000021", domain.CurrencyRUB, 100)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			err := s.RunInTx(ctx, func(tx ledger.Tx) error {
				if _, err := tx.LockAccounts(ctx, acc.ID); err != nil {
					return err
				}
				_, err := tx.ApplyAndRecord(ctx, []ledger.BalanceDelta{{AccountID: acc.ID, Delta: 1}}, ledger.TransactionDraft{
					ToAccountID:    &acc.ID,
					Subkind:        domain.SubkindTopUpHelper,
					Amount:         1,
					Currency:       domain.CurrencyRUB,
					Credited:       1,
					CreditCurrency: domain.CurrencyRUB,
					InitiatedBy:    1,
					CreatedAt:      time.Now(),
				})
				return err
			})
			assert.NoError(t, err)
		}
	}()

	for range 5000 {
		totals, err := s.Reader().Totals(ctx)
		require.NoError(t, err)
		require.Len(t, totals, 1)
		if !assert.Equal(t, totals[0].Net(), totals[0].Balances) {
			break
		}
	}
	close(stop)
	wg.Wait()
}
