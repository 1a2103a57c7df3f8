package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Match pairs one BANK transaction with one ACCOUNTING transaction.
type Match struct {
	ID                      string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	BankTransactionID       string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"bankTransactionId"`
	AccountingTransactionID string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"accountingTransactionId"`
	CreatedAt               time.Time `json:"createdAt"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (m *Match) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
