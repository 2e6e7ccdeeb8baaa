package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
	"github.com/ayo6706/retail-ledger/internal/observability"
	"go.uber.org/zap"
)

// ReconciliationService verifies ledger integrity invariants.
type ReconciliationService struct {
	store ledger.Store
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store ledger.Store) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Imbalance is a currency whose stored balances disagree with the log.
type Imbalance struct {
	Currency domain.Currency
	Balances domain.Amount
	Net      domain.Amount
}

// Check compares, per currency, the sum of all account balances with
// credits minus debits (principal plus fee) over the transaction log.
func (s *ReconciliationService) Check(ctx context.Context) ([]Imbalance, error) {
	totals, err := s.store.Reader().Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger totals: %w", err)
	}
	var out []Imbalance
	for _, t := range totals {
		if t.Balances != t.Net() {
			out = append(out, Imbalance{Currency: t.Currency, Balances: t.Balances, Net: t.Net()})
		}
	}
	return out, nil
}

// Run checks the ledger and reports every imbalance. An imbalance is not an
// error of the run itself.
func (s *ReconciliationService) Run(ctx context.Context) error {
	imbalances, err := s.Check(ctx)
	if err != nil {
		return err
	}
	for _, im := range imbalances {
		observability.IncrementLedgerImbalance(string(im.Currency))
		zap.L().Error("CRITICAL: ledger imbalance detected",
			zap.String("currency", string(im.Currency)),
			zap.String("balances", im.Balances.String()),
			zap.String("net", im.Net.String()),
		)
	}
	if len(imbalances) == 0 {
		zap.L().Info("Ledger Balanced")
	}
	return nil
}
