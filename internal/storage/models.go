package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertRecord captures an emitted balance alert for auditing and export.
type AlertRecord struct {
	ID        int64
	ChainID   uint64
	TxHash    string
	Label     string
	Account   string
	Token     string
	Symbol    string
	Balance   decimal.Decimal
	Threshold decimal.Decimal
	Delivered bool
	CreatedAt time.Time
}
