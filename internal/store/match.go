package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cleared-dev/reconciler/internal/model"
)

// ConfirmMatch pairs a pending bank transaction with a pending accounting
// transaction. Both status flips and the Match insert happen in one database
// transaction; if either side is no longer PENDING nothing is written and
// ErrNotPending is returned.
func (s *Store) ConfirmMatch(ctx context.Context, bankID, accountingID string) (*model.Match, error) {
	var match *model.Match
	err := s.WithTx(ctx, func(tx *Store) error {
		if err := tx.claim(ctx, bankID, model.SourceBank); err != nil {
			return err
		}
		if err := tx.claim(ctx, accountingID, model.SourceAccounting); err != nil {
			return err
		}
		m := model.Match{BankTransactionID: bankID, AccountingTransactionID: accountingID}
		if err := tx.db.WithContext(ctx).Create(&m).Error; err != nil {
			return fmt.Errorf("creating match: %w", err)
		}
		match = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// claim flips one transaction from PENDING to MATCHED if it is still pending
// and belongs to source.
func (s *Store) claim(ctx context.Context, id string, source model.Source) error {
	res := s.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND source = ? AND status = ?", id, source, model.StatusPending).
		Update("status", model.StatusMatched)
	if res.Error != nil {
		return fmt.Errorf("claiming %s transaction %s: %w", source, id, res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("%s transaction %s: %w", source, id, ErrNotPending)
	}
	return nil
}

// GetMatch returns a match by id.
func (s *Store) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	var m model.Match
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading match %s: %w", id, err)
	}
	return &m, nil
}

// DeleteMatch removes a match and reverts both of its transactions to
// PENDING in the same database transaction.
func (s *Store) DeleteMatch(ctx context.Context, id string) (*model.Match, error) {
	var deleted *model.Match
	err := s.WithTx(ctx, func(tx *Store) error {
		m, err := tx.GetMatch(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.db.WithContext(ctx).Delete(m).Error; err != nil {
			return fmt.Errorf("deleting match %s: %w", id, err)
		}
		for _, txnID := range []string{m.BankTransactionID, m.AccountingTransactionID} {
			if err := tx.UpdateStatus(ctx, txnID, model.StatusPending); err != nil {
				return err
			}
		}
		deleted = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
