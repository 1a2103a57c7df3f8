package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeFromCSV(t *testing.T) {
	tests := []struct {
		raw  string
		want Type
	}{
		{"CREDIT", TypeCredit},
		{"credit", TypeCredit},
		{" Credit ", TypeCredit},
		{"DEBIT", TypeDebit},
		{"debit", TypeDebit},
		{"transfer", TypeDebit},
		{"", TypeDebit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TypeFromCSV(tt.raw), "TypeFromCSV(%q)", tt.raw)
	}
}

func TestParseSource(t *testing.T) {
	s, err := ParseSource("BANK")
	require.NoError(t, err)
	assert.Equal(t, SourceBank, s)

	s, err = ParseSource("ACCOUNTING")
	require.NoError(t, err)
	assert.Equal(t, SourceAccounting, s)

	_, err = ParseSource("bank")
	assert.Error(t, err)
	_, err = ParseSource("")
	assert.Error(t, err)
}

func TestParseTypeAndStatus(t *testing.T) {
	_, err := ParseType("CREDIT")
	assert.NoError(t, err)
	_, err = ParseType("OTHER")
	assert.ErrorContains(t, err, "invalid type")

	_, err = ParseStatus("MATCHED")
	assert.NoError(t, err)
	_, err = ParseStatus("DONE")
	assert.ErrorContains(t, err, "invalid status")
}

func TestBeforeCreateAssignsID(t *testing.T) {
	tx := &Transaction{}
	require.NoError(t, tx.BeforeCreate(nil))
	assert.Len(t, tx.ID, 36)

	keep := &Transaction{ID: "fixed"}
	require.NoError(t, keep.BeforeCreate(nil))
	assert.Equal(t, "fixed", keep.ID)

	m := &Match{}
	require.NoError(t, m.BeforeCreate(nil))
	assert.NotEmpty(t, m.ID)
}

func TestCheckAmount(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{"0", true},
		{"1234.560", true},
		{"-50.1", true},
		{"9999999999999.99", true},
		{"-9999999999999.99", true},
		{"10000000000000", false},
		{"99999999999999.99", false},
		{"1234567890123456.78", false},
		{"0.001", false},
		{"10.005", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := CheckAmount(decimal.RequireFromString(tt.raw))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrAmountOutOfRange)
			}
		})
	}
}
