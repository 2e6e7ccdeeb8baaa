package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/retail-ledger/internal/directory"
	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopUp_CreditsOwnAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)
	acc := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	rec, err := f.transfers.TopUp(ctx, TopUp{Actor: alice, AccountID: acc.ID, Amount: rub(1000), OTP: validOTP})
	require.NoError(t, err)

	assert.Equal(t, rub(1000), f.balance(t, acc.ID))
	assert.Equal(t, domain.TxTypeTopUp, rec.Type)
	assert.Equal(t, domain.SubkindTopUpSelf, rec.Subkind)
	assert.Equal(t, rub(1000), rec.Amount)
	assert.Zero(t, rec.Fee)
	assert.Nil(t, rec.FromAccountID)
	assert.Equal(t, acc.ID, *rec.ToAccountID)
	assert.Equal(t, "self_topup", rec.Description)
	assert.Equal(t, domain.TxStatusCompleted, rec.Status)
}

func TestTopUp_RequiresOTP(t *testing.T) {
	f := newFixture(t)
	alice := f.client(t)
	acc := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	_, err := f.transfers.TopUp(context.Background(), TopUp{Actor: alice, AccountID: acc.ID, Amount: rub(10), OTP: "0000"})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
	assert.Zero(t, f.balance(t, acc.ID))
	assert.Zero(t, f.transactionCount(t, alice.UserID))
}

func TestCredit_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, admin := f.client(t), f.client(t), f.admin(t)
	bobAcc := f.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	_, err := f.transfers.Credit(ctx, Credit{Actor: alice, AccountID: bobAcc.ID, Amount: rub(5), Reason: domain.TopUpGift})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = f.transfers.Credit(ctx, Credit{Actor: bob, AccountID: bobAcc.ID, Amount: rub(5), Reason: domain.TopUpSalary})
	assert.ErrorIs(t, err, domain.ErrSalaryCreditAdminOnly)

	rec, err := f.transfers.Credit(ctx, Credit{Actor: admin, AccountID: bobAcc.ID, Amount: rub(5000), Reason: domain.TopUpSalary})
	require.NoError(t, err)
	assert.Equal(t, domain.SubkindAdminCredit, rec.Subkind)
	assert.Equal(t, admin.UserID, rec.InitiatedBy)

	_, err = f.transfers.Credit(ctx, Credit{Actor: bob, AccountID: bobAcc.ID, Amount: 0})
	assert.ErrorIs(t, err, domain.ErrAmountNotPositive)

	_, err = f.transfers.Credit(ctx, Credit{Actor: bob, AccountID: bobAcc.ID, Amount: domain.MaxAmount + 1})
	assert.ErrorIs(t, err, domain.ErrAmountTooLarge)

	assert.Equal(t, rub(5000), f.balance(t, bobAcc.ID))
}

func TestInternal_MovesExactAmount(t *testing.T) {
	f := newFixture(t)
	alice := f.client(t)
	a := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(5000))
	b := f.account(t, alice, domain.AccountTypeSavings, domain.CurrencyRUB, 0)

	rec, err := f.transfers.Internal(context.Background(), InternalTransfer{Actor: alice, FromAccountID: a.ID, ToAccountID: b.ID, Amount: rub(1500)})
	require.NoError(t, err)

	assert.Equal(t, rub(3500), f.balance(t, a.ID))
	assert.Equal(t, rub(1500), f.balance(t, b.ID))
	assert.Equal(t, domain.TxTypeTransfer, rec.Type)
	assert.Equal(t, domain.SubkindInternalTransfer, rec.Subkind)
	assert.Zero(t, rec.Fee)
	assert.Equal(t, rec.Amount, rec.Credited)
	assert.Equal(t, int32(0), f.otp.calls.Load())
}

func TestInternal_OptionalOTPStillVerified(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	alice := f.client(t)
	a := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(100))
	b := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)
	_, err := f.transfers.Internal(ctx, InternalTransfer{Actor: alice, FromAccountID: a.ID, ToAccountID: b.ID, Amount: rub(10), OTP: "9999"})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	strict := newFixture(t, func(p *Policy) { p.RequireOTPInternal = true })
	bob := strict.client(t)
	c := strict.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, rub(100))
	d := strict.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)
	_, err = strict.transfers.Internal(ctx, InternalTransfer{Actor: bob, FromAccountID: c.ID, ToAccountID: d.ID, Amount: rub(10)})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
	_, err = strict.transfers.Internal(ctx, InternalTransfer{Actor: bob, FromAccountID: c.ID, ToAccountID: d.ID, Amount: rub(10), OTP: validOTP})
	assert.NoError(t, err)
}

func TestInternal_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	checking := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(100))
	other := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)
	savings := f.account(t, alice, domain.AccountTypeSavings, domain.CurrencyRUB, rub(100))
	usd := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyUSD, 0)
	bobs := f.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	closed := f.account(t, alice, domain.AccountTypeSavings, domain.CurrencyUSD, 0)
	require.NoError(t, f.accounts.Close(ctx, alice, closed.ID))

	blocked := alice
	blocked.Blocked = true

	tests := []struct {
		name string
		cmd  InternalTransfer
		want error
	}{
		{"below minimum", InternalTransfer{Actor: alice, FromAccountID: checking.ID, ToAccountID: other.ID, Amount: 9_99}, domain.ErrAmountTooSmall},
		{"zero", InternalTransfer{Actor: alice, FromAccountID: checking.ID, ToAccountID: other.ID, Amount: 0}, domain.ErrAmountNotPositive},
		{"above single max", InternalTransfer{Actor: alice, FromAccountID: checking.ID, ToAccountID: other.ID, Amount: rub(300_001)}, domain.ErrAmountExceedsSingle},
		{"same account", InternalTransfer{Actor: alice, FromAccountID: checking.ID, ToAccountID: checking.ID, Amount: rub(10)}, domain.ErrSameAccount},
		{"from savings", InternalTransfer{Actor: alice, FromAccountID: savings.ID, ToAccountID: other.ID, Amount: rub(10)}, domain.ErrTransferFromSavings},
		{"currency mismatch", InternalTransfer{Actor: alice, FromAccountID: checking.ID, ToAccountID: usd.ID, Amount: rub(10)}, domain.ErrCurrencyMismatch},
		{"foreign target", InternalTransfer{Actor: alice, FromAccountID: checking.ID, ToAccountID: bobs.ID, Amount: rub(10)}, domain.ErrAccountNotFound},
		{"foreign source", InternalTransfer{Actor: bob, FromAccountID: checking.ID, ToAccountID: bobs.ID, Amount: rub(10)}, domain.ErrAccountNotFound},
		{"closed target", InternalTransfer{Actor: alice, FromAccountID: checking.ID, ToAccountID: closed.ID, Amount: rub(10)}, domain.ErrAccountInactive},
		{"insufficient", InternalTransfer{Actor: alice, FromAccountID: checking.ID, ToAccountID: other.ID, Amount: rub(101)}, domain.ErrInsufficientFunds},
		{"blocked", InternalTransfer{Actor: blocked, FromAccountID: checking.ID, ToAccountID: other.ID, Amount: rub(10)}, domain.ErrUserBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.sink.count()
			_, err := f.transfers.Internal(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, rub(100), f.balance(t, checking.ID))
			assert.Zero(t, f.balance(t, other.ID))
			assert.Equal(t, before, f.sink.count())
		})
	}
}

func TestInternal_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(900))
	dst := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		declined  int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.transfers.Internal(ctx, InternalTransfer{Actor: alice, FromAccountID: src.ID, ToAccountID: dst.ID, Amount: rub(100)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, domain.ErrInsufficientFunds):
				declined++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers-1, succeeded)
	assert.Equal(t, 1, declined)
	assert.Zero(t, f.balance(t, src.ID))
	assert.Equal(t, rub(900), f.balance(t, dst.ID))
}

func TestInternal_OppositeDirectionsDoNotDeadlock(t *testing.T) {
	f := newFixture(t)
	alice := f.client(t)
	a := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1000))
	b := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1000))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := range 20 {
		from, to := a, b
		if i%2 == 1 {
			from, to = b, a
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.transfers.Internal(ctx, InternalTransfer{Actor: alice, FromAccountID: from.ID, ToAccountID: to.ID, Amount: rub(10)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, rub(2000), f.balance(t, a.ID)+f.balance(t, b.ID))
	assert.Equal(t, rub(1000), f.balance(t, a.ID))
}

func TestByAccount_LocalRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1000))
	own := f.account(t, alice, domain.AccountTypeSavings, domain.CurrencyRUB, 0)
	dst := f.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	rec, err := f.transfers.ByAccount(ctx, AccountNumberTransfer{Actor: alice, FromAccountID: src.ID, AccountNumber: dst.Number, Amount: rub(250), OTP: validOTP})
	require.NoError(t, err)
	assert.Equal(t, domain.SubkindP2PTransfer, rec.Subkind)
	assert.Equal(t, "p2p_transfer_by_account:RUB:"+domain.MaskAccountNumber(dst.Number), rec.Description)
	assert.Zero(t, rec.Fee)
	assert.Equal(t, rub(250), f.balance(t, dst.ID))
	assert.Equal(t, rub(750), f.balance(t, src.ID))

	rec, err = f.transfers.ByAccount(ctx, AccountNumberTransfer{Actor: alice, FromAccountID: src.ID, AccountNumber: own.Number, Amount: rub(50), OTP: validOTP})
	require.NoError(t, err)
	assert.Equal(t, domain.SubkindInternalTransfer, rec.Subkind)

	usage, err := f.transfers.DailyUsage(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, rub(250), usage[0].UsedToday)

	_, err = f.transfers.ByAccount(ctx, AccountNumberTransfer{Actor: alice, FromAccountID: src.ID, AccountNumber: src.Number, Amount: rub(50), OTP: validOTP})
	assert.ErrorIs(t, err, domain.ErrSameAccount)

	_, err = f.transfers.ByAccount(ctx, AccountNumberTransfer{Actor: alice, FromAccountID: src.ID, AccountNumber: "12ab", Amount: rub(50), OTP: validOTP})
	assert.ErrorIs(t, err, domain.ErrInvalidAccountNumber)
}

func TestByAccount_UnknownNumberGoesExternal(t *testing.T) {
	f := newFixture(t)
	alice := f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(2000))

	rec, err := f.transfers.ByAccount(context.Background(), AccountNumberTransfer{
		Actor: alice, FromAccountID: src.ID, AccountNumber: "9999000011112222", Amount: rub(1000), OTP: validOTP,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SubkindExternalTransfer, rec.Subkind)
	assert.Equal(t, rub(50), rec.Fee)
	assert.Equal(t, rub(950), f.balance(t, src.ID))
}

func TestExternalByAccount_FeeAndConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(2000))

	rec, err := f.transfers.ExternalByAccount(ctx, AccountNumberTransfer{
		Actor: alice, FromAccountID: src.ID, AccountNumber: "9999000011112222", Amount: rub(1000), OTP: validOTP,
	})
	require.NoError(t, err)

	assert.Equal(t, rub(1000), rec.Amount)
	assert.Equal(t, rub(50), rec.Fee)
	assert.Equal(t, rub(1050), rec.Total())
	assert.Nil(t, rec.ToAccountID)
	assert.Zero(t, rec.Credited)
	assert.Equal(t, "external_transfer:RUB:••••2222:fee_50.00", rec.Description)
	assert.Equal(t, rub(950), f.balance(t, src.ID))

	imbalances, err := NewReconciliationService(f.store).Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, imbalances)
}

func TestExternalByAccount_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1000))
	local := f.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	_, err := f.transfers.ExternalByAccount(ctx, AccountNumberTransfer{Actor: alice, FromAccountID: src.ID, AccountNumber: local.Number, Amount: rub(100), OTP: validOTP})
	assert.ErrorIs(t, err, domain.ErrAccountFoundInBank)

	// 960 + 48 fee exceeds the balance even though the principal fits.
	_, err = f.transfers.ExternalByAccount(ctx, AccountNumberTransfer{Actor: alice, FromAccountID: src.ID, AccountNumber: "9999000011112222", Amount: rub(960), OTP: validOTP})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = f.transfers.ExternalByAccount(ctx, AccountNumberTransfer{Actor: alice, FromAccountID: src.ID, AccountNumber: "9999000011112222", Amount: rub(100)})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	assert.Equal(t, rub(1000), f.balance(t, src.ID))
}

func TestCheckAccountNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	acc := f.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	check, err := f.transfers.CheckAccountNumber(ctx, alice, acc.Number)
	require.NoError(t, err)
	assert.True(t, check.Found)
	assert.Equal(t, domain.MaskAccountNumber(acc.Number), check.Masked)

	check, err = f.transfers.CheckAccountNumber(ctx, alice, "9999000011112222")
	require.NoError(t, err)
	assert.False(t, check.Found)

	_, err = f.transfers.CheckAccountNumber(ctx, alice, "123")
	assert.ErrorIs(t, err, domain.ErrInvalidAccountNumber)
}

func TestByPhone_Local(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1000))
	first := f.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)
	second := f.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	rec, err := f.transfers.ByPhone(ctx, PhoneTransfer{
		Actor: alice, FromAccountID: src.ID, Phone: f.phone(t, bob), BankID: directory.OurBankCode, Amount: rub(100), OTP: validOTP,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, *rec.ToAccountID)
	assert.Equal(t, domain.SubkindP2PTransfer, rec.Subkind)

	_, err = f.accounts.SetPrimary(ctx, bob, second.ID)
	require.NoError(t, err)
	rec, err = f.transfers.ByPhone(ctx, PhoneTransfer{
		Actor: alice, FromAccountID: src.ID, Phone: f.phone(t, bob), BankID: directory.OurBankCode, Amount: rub(100), OTP: validOTP,
	})
	require.NoError(t, err)
	assert.Equal(t, second.ID, *rec.ToAccountID)
	assert.Equal(t, rub(800), f.balance(t, src.ID))
}

func TestByPhone_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.client(t), f.client(t), f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1000))
	f.account(t, bob, domain.AccountTypeSavings, domain.CurrencyRUB, 0)
	f.account(t, carol, domain.AccountTypeChecking, domain.CurrencyUSD, 0)

	tests := []struct {
		name  string
		phone string
		bank  string
		want  error
	}{
		{"unknown phone", "+79990000000", directory.OurBankCode, domain.ErrRecipientNotFound},
		{"savings only", f.phone(t, bob), directory.OurBankCode, domain.ErrNoSuitableRecipientAccount},
		{"wrong currency", f.phone(t, carol), directory.OurBankCode, domain.ErrNoSuitableRecipientAccount},
		{"bad phone", "12345", directory.OurBankCode, domain.ErrInvalidPhone},
		{"unknown bank", f.phone(t, bob), "nobank", domain.ErrUnknownBank},
		{"self", f.phone(t, alice), directory.OurBankCode, domain.ErrSameAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.transfers.ByPhone(ctx, PhoneTransfer{Actor: alice, FromAccountID: src.ID, Phone: tt.phone, BankID: tt.bank, Amount: rub(100), OTP: validOTP})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, rub(1000), f.balance(t, src.ID))
		})
	}
}

func TestByPhone_External(t *testing.T) {
	f := newFixture(t)
	alice := f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(2000))

	rec, err := f.transfers.ByPhone(context.Background(), PhoneTransfer{
		Actor: alice, FromAccountID: src.ID, Phone: "8 (999) 123-45-67", BankID: "sber", Amount: rub(1000), OTP: validOTP,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SubkindExternalTransfer, rec.Subkind)
	assert.Equal(t, rub(20), rec.Fee)
	assert.Equal(t, "p2p_by_phone_external:sber:+79991234567:fee_20.00", rec.Description)
	assert.Equal(t, rub(980), f.balance(t, src.ID))
}

func TestCheckPhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	require.NoError(t, f.store.SetUserBanks(ctx, bob.UserID, []string{"vtb"}))

	check, err := f.transfers.CheckPhone(ctx, alice, f.phone(t, bob))
	require.NoError(t, err)
	assert.True(t, check.InOurBank)
	require.Len(t, check.Banks, 2)
	assert.Equal(t, directory.OurBankCode, check.Banks[0].Code)
	assert.Equal(t, "vtb", check.Banks[1].Code)

	check, err = f.transfers.CheckPhone(ctx, alice, "+79990000000")
	require.NoError(t, err)
	assert.False(t, check.InOurBank)
	assert.Len(t, check.Banks, len(directory.ExternalBanks()))
}

func TestExchange_ConvertsAtReferenceRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)
	rubAcc := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1000))
	usdAcc := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyUSD, 0)

	rec, err := f.transfers.Exchange(ctx, Exchange{Actor: alice, FromAccountID: rubAcc.ID, ToAccountID: usdAcc.ID, Amount: rub(950), OTP: validOTP})
	require.NoError(t, err)

	assert.Equal(t, rub(50), f.balance(t, rubAcc.ID))
	assert.Equal(t, domain.Amount(10_00), f.balance(t, usdAcc.ID))
	assert.Equal(t, domain.SubkindExchange, rec.Subkind)
	assert.Equal(t, domain.CurrencyRUB, rec.Currency)
	assert.Equal(t, domain.CurrencyUSD, rec.CreditCurrency)
	assert.Equal(t, "fx_exchange:RUB->USD:10.00", rec.Description)

	_, err = f.transfers.Exchange(ctx, Exchange{Actor: alice, FromAccountID: rubAcc.ID, ToAccountID: rubAcc.ID, Amount: rub(10), OTP: validOTP})
	assert.ErrorIs(t, err, domain.ErrSameAccount)

	other := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)
	_, err = f.transfers.Exchange(ctx, Exchange{Actor: alice, FromAccountID: rubAcc.ID, ToAccountID: other.ID, Amount: rub(10), OTP: validOTP})
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)
}

func TestExchange_CountsTowardSourceLimit(t *testing.T) {
	f := newFixture(t, func(p *Policy) { p.DailyLimits.RUB = rub(1000) })
	ctx := context.Background()
	alice := f.client(t)
	rubAcc := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(5000))
	usdAcc := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyUSD, 0)

	_, err := f.transfers.Exchange(ctx, Exchange{Actor: alice, FromAccountID: rubAcc.ID, ToAccountID: usdAcc.ID, Amount: rub(950), OTP: validOTP})
	require.NoError(t, err)
	_, err = f.transfers.Exchange(ctx, Exchange{Actor: alice, FromAccountID: rubAcc.ID, ToAccountID: usdAcc.ID, Amount: rub(95), OTP: validOTP})
	assert.ErrorIs(t, err, domain.ErrDailyLimitExceeded)
}

func TestDailyLimit_ResetsNextDay(t *testing.T) {
	f := newFixture(t, func(p *Policy) { p.MaxSingleTransfer = rub(1_000_000) })
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1_500_000))
	dst := f.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	send := func(amount domain.Amount) error {
		_, err := f.transfers.ByAccount(ctx, AccountNumberTransfer{Actor: alice, FromAccountID: src.ID, AccountNumber: dst.Number, Amount: amount, OTP: validOTP})
		return err
	}

	require.NoError(t, send(rub(600_000)))
	assert.ErrorIs(t, send(rub(500_000)), domain.ErrDailyLimitExceeded)
	assert.Equal(t, rub(900_000), f.balance(t, src.ID))

	usage, err := f.transfers.DailyUsage(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, DailyUsage{Currency: domain.CurrencyRUB, DailyLimit: rub(1_000_000), UsedToday: rub(600_000), Remaining: rub(400_000)}, usage[0])

	f.advance(24 * time.Hour)
	require.NoError(t, send(rub(500_000)))
	assert.Equal(t, rub(400_000), f.balance(t, src.ID))
}

func TestDailyLimit_FeeDoesNotCount(t *testing.T) {
	f := newFixture(t, func(p *Policy) { p.DailyLimits.RUB = rub(1000) })
	alice := f.client(t)
	src := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(2000))

	_, err := f.transfers.ExternalByAccount(context.Background(), AccountNumberTransfer{
		Actor: alice, FromAccountID: src.ID, AccountNumber: "9999000011112222", Amount: rub(1000), OTP: validOTP,
	})
	require.NoError(t, err)
	assert.Equal(t, rub(950), f.balance(t, src.ID))
}

func TestDailyLimit_ConcurrentTransfersCannotOvershoot(t *testing.T) {
	f := newFixture(t, func(p *Policy) { p.MaxSingleTransfer = rub(1_000_000) })
	ctx := context.Background()
	alice, bob := f.client(t), f.client(t)
	a1 := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1_000_000))
	a2 := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1_000_000))
	dst := f.account(t, bob, domain.AccountTypeChecking, domain.CurrencyRUB, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, src := range []domain.Account{a1, a2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.transfers.ByAccount(ctx, AccountNumberTransfer{Actor: alice, FromAccountID: src.ID, AccountNumber: dst.Number, Amount: rub(600_000), OTP: validOTP})
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrDailyLimitExceeded)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, rub(600_000), f.balance(t, dst.ID))
}

func TestPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)
	rubAcc := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(1000))
	usdAcc := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyUSD, rub(1000))

	rec, err := f.transfers.PayMobile(ctx, MobilePayment{Actor: alice, AccountID: rubAcc.ID, Operator: "MTSha", Phone: "89991234567", Amount: rub(300), OTP: validOTP})
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypePayment, rec.Type)
	assert.Equal(t, "mobile:MTSha:+79991234567", rec.Description)
	assert.Nil(t, rec.ToAccountID)

	rec, err = f.transfers.PayVendor(ctx, VendorPayment{Actor: alice, AccountID: rubAcc.ID, Provider: "GoodHands", AccountNumber: "1234567890", Amount: rub(200), OTP: validOTP})
	require.NoError(t, err)
	assert.Equal(t, domain.SubkindVendorPayment, rec.Subkind)
	assert.Equal(t, rub(500), f.balance(t, rubAcc.ID))

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"non rub account", func() error {
			_, err := f.transfers.PayMobile(ctx, MobilePayment{Actor: alice, AccountID: usdAcc.ID, Operator: "MTSha", Phone: "89991234567", Amount: rub(300), OTP: validOTP})
			return err
		}, domain.ErrPaymentRequiresRUB},
		{"unknown operator", func() error {
			_, err := f.transfers.PayMobile(ctx, MobilePayment{Actor: alice, AccountID: rubAcc.ID, Operator: "Nope", Phone: "89991234567", Amount: rub(300), OTP: validOTP})
			return err
		}, domain.ErrOperatorNotSupported},
		{"mobile out of range", func() error {
			_, err := f.transfers.PayMobile(ctx, MobilePayment{Actor: alice, AccountID: rubAcc.ID, Operator: "MTSha", Phone: "89991234567", Amount: rub(12_001), OTP: validOTP})
			return err
		}, domain.ErrPaymentAmountOutOfRange},
		{"vendor account length", func() error {
			_, err := f.transfers.PayVendor(ctx, VendorPayment{Actor: alice, AccountID: rubAcc.ID, Provider: "GoodHands", AccountNumber: "123", Amount: rub(200), OTP: validOTP})
			return err
		}, domain.ErrPaymentAccountLength},
		{"unknown provider", func() error {
			_, err := f.transfers.PayVendor(ctx, VendorPayment{Actor: alice, AccountID: rubAcc.ID, Provider: "Nope", AccountNumber: "123", Amount: rub(200), OTP: validOTP})
			return err
		}, domain.ErrProviderNotSupported},
		{"insufficient", func() error {
			_, err := f.transfers.PayVendor(ctx, VendorPayment{Actor: alice, AccountID: rubAcc.ID, Provider: "GoodHands", AccountNumber: "1234567890", Amount: rub(501), OTP: validOTP})
			return err
		}, domain.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
			assert.Equal(t, rub(500), f.balance(t, rubAcc.ID))
		})
	}

	usage, err := f.transfers.DailyUsage(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, usage[0].UsedToday)
}

func TestExecute_PublishesOnlyCommitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.client(t)
	a := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, rub(100))
	b := f.account(t, alice, domain.AccountTypeChecking, domain.CurrencyRUB, 0)
	before := f.sink.count()

	rec, err := f.transfers.Internal(ctx, InternalTransfer{Actor: alice, FromAccountID: a.ID, ToAccountID: b.ID, Amount: rub(50)})
	require.NoError(t, err)
	_, err = f.transfers.Internal(ctx, InternalTransfer{Actor: alice, FromAccountID: a.ID, ToAccountID: b.ID, Amount: rub(500)})
	require.Error(t, err)

	require.Equal(t, before+1, f.sink.count())
	assert.Equal(t, rec.ID, f.sink.txs[before].ID)
}

func TestRates(t *testing.T) {
	f := newFixture(t)
	rates := f.transfers.Rates()
	require.Len(t, rates, len(domain.Currencies))
	assert.Equal(t, domain.CurrencyRUB, rates[0].Currency)
	assert.True(t, rates[0].ToReference.Equal(DefaultPolicy().RatesToReference.RUB))
}
