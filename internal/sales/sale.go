package sales

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sale is the transaction body a register records and the server receives verbatim.
type Sale struct {
	ReceiptNumber string          `json:"receipt_number" validate:"required,max=64"`
	StoreID       string          `json:"store_id"`
	BranchID      string          `json:"branch_id"`
	TerminalID    string          `json:"terminal_id"`
	CashierID     string          `json:"cashier_id" validate:"required"`
	CustomerID    *string         `json:"customer_id,omitempty"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	Lines         []Line          `json:"lines" validate:"required,min=1,dive"`
	Payments      []Payment       `json:"payments" validate:"required,min=1,dive"`
	Subtotal      decimal.Decimal `json:"subtotal" validate:"decimal_gte0"`
	Tax           decimal.Decimal `json:"tax" validate:"decimal_gte0"`
	Total         decimal.Decimal `json:"total" validate:"decimal_gte0"`
	SoldAt        time.Time       `json:"sold_at" validate:"required"`
}

type Line struct {
	ProductID string          `json:"product_id" validate:"required"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"decimal_gte0"`
	Discount  decimal.Decimal `json:"discount" validate:"decimal_gte0"`
	LineTotal decimal.Decimal `json:"line_total" validate:"decimal_gte0"`
}

type Payment struct {
	Method    string          `json:"method" validate:"required,oneof=cash card voucher"`
	Amount    decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	Reference *string         `json:"reference,omitempty"`
}

// Tendered sums every payment.
func (s Sale) Tendered() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range s.Payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// Change is what the cashier hands back.
func (s Sale) Change() decimal.Decimal {
	change := s.Tendered().Sub(s.Total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}

// Payload marshals the sale for the outbox.
func (s Sale) Payload() (json.RawMessage, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal sale: %w", err)
	}
	return b, nil
}
