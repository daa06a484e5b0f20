package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scope is the tenant/branch a terminal sells under.
type Scope struct {
	StoreID  string
	BranchID string
}

// OrderRecord is the server's confirmation of a created order.
type OrderRecord struct {
	ID             string    `json:"id"`
	IdempotencyKey string    `json:"idempotency_key"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type Product struct {
	ID       string          `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Active   bool            `json:"active"`
}

type Customer struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}
