package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Source identifies where a transaction was imported from.
type Source string

const (
	SourceBank       Source = "BANK"
	SourceAccounting Source = "ACCOUNTING"
)

// Type is the direction of a transaction.
type Type string

const (
	TypeCredit Type = "CREDIT"
	TypeDebit  Type = "DEBIT"
)

// Status is the reconciliation state of a transaction.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusMatched Status = "MATCHED"
)

// Transaction is a single bank or accounting record.
type Transaction struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Type        Type            `gorm:"type:varchar(10);not null;index" json:"type"`
	Source      Source          `gorm:"type:varchar(10);not null;index:idx_transactions_source_status" json:"source"`
	Status      Status          `gorm:"type:varchar(10);not null;index:idx_transactions_source_status" json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`

	// Set only when preloaded; at most one of them is non-nil.
	BankMatch       *Match `gorm:"foreignKey:BankTransactionID" json:"bankMatch,omitempty"`
	AccountingMatch *Match `gorm:"foreignKey:AccountingTransactionID" json:"accountingMatch,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (t *Transaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// ParseSource validates a source name. Matching is exact, as on the wire.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceBank, SourceAccounting:
		return Source(s), nil
	}
	return "", fmt.Errorf("invalid source %q: must be one of %s, %s", s, SourceBank, SourceAccounting)
}

// ParseType validates a transaction type name.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeCredit, TypeDebit:
		return Type(s), nil
	}
	return "", fmt.Errorf("invalid type %q: must be one of %s, %s", s, TypeCredit, TypeDebit)
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusMatched:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid status %q: must be one of %s, %s", s, StatusPending, StatusMatched)
}

// MaxAmount bounds the magnitude of an amount. With at most two decimal places
// this keeps every amount within 15 significant digits, which every supported
// database compares and returns exactly, sqlite's REAL storage included.
var MaxAmount = decimal.New(1, 13)

// ErrAmountOutOfRange is returned for amounts that cannot be stored exactly.
var ErrAmountOutOfRange = errors.New("amount out of range")

// CheckAmount reports whether d fits the amount column exactly: no more than
// two decimal places and a magnitude below MaxAmount.
func CheckAmount(d decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return fmt.Errorf("%w: %s has more than 2 decimal places", ErrAmountOutOfRange, d)
	}
	if d.Abs().GreaterThanOrEqual(MaxAmount) {
		return fmt.Errorf("%w: |%s| must be below %s", ErrAmountOutOfRange, d, MaxAmount)
	}
	return nil
}

// TypeFromCSV maps a free-form CSV type column to a Type.
// Anything that is not "credit" (in any case) is treated as a debit.
func TypeFromCSV(s string) Type {
	if strings.EqualFold(strings.TrimSpace(s), string(TypeCredit)) {
		return TypeCredit
	}
	return TypeDebit
}
