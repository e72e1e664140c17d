package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionTypeSettlement is the only transaction type the core writes:
// one immutable row per delivered order. Uniqueness on
// (order_id, transaction_type) makes the settlement path idempotent.
const TransactionTypeSettlement = "delivery_settlement"

// Transaction is an append-only ledger entry derived from a completed
// order. Never mutated after creation.
type Transaction struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	RestaurantID     *string         `json:"restaurant_id,omitempty"`
	DriverID         *string         `json:"driver_id,omitempty"`
	TransactionType  string          `json:"transaction_type"`
	Amount           decimal.Decimal `json:"amount"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	CreatedAt        time.Time       `json:"created_at"`
}

// LedgerSummary is the admin dashboard projection over the ledger.
type LedgerSummary struct {
	Settlements     int             `json:"settlements"`
	GrossVolume     decimal.Decimal `json:"gross_volume"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}
