package controllers

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
)

type outboxEntryDTO struct {
	ID             uint64             `json:"id"`
	IdempotencyKey string             `json:"idempotency_key"`
	StoreID        string             `json:"store_id"`
	BranchID       string             `json:"branch_id"`
	Status         enums.OutboxStatus `json:"status"`
	RetryCount     int                `json:"retry_count"`
	NextRetryAt    *time.Time         `json:"next_retry_at,omitempty"`
	LastError      *string            `json:"last_error,omitempty"`
	Sale           json.RawMessage    `json:"sale"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func toOutboxEntryDTO(e models.OutboxEntry) outboxEntryDTO {
	return outboxEntryDTO{
		ID:             e.ID,
		IdempotencyKey: e.IdempotencyKey,
		StoreID:        e.StoreID,
		BranchID:       e.BranchID,
		Status:         e.Status,
		RetryCount:     e.RetryCount,
		NextRetryAt:    e.NextRetryAt,
		LastError:      e.LastError,
		Sale:           e.Payload,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

type productDTO struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Category      string          `json:"category,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	Active        bool            `json:"active"`
	LastFetchedAt time.Time       `json:"last_fetched_at"`
}

func toProductDTO(p models.CachedProduct) productDTO {
	return productDTO{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		Category:      p.Category,
		Price:         p.Price,
		Stock:         p.Stock,
		Active:        p.Active,
		LastFetchedAt: p.LastFetchedAt,
	}
}

type categoryDTO struct {
	Name          string    `json:"name"`
	LastFetchedAt time.Time `json:"last_fetched_at"`
}

func toCategoryDTO(c models.CachedCategory) categoryDTO {
	return categoryDTO{Name: c.Name, LastFetchedAt: c.LastFetchedAt}
}

type customerDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	LastFetchedAt time.Time `json:"last_fetched_at"`
}

func toCustomerDTO(c models.CachedCustomer) customerDTO {
	return customerDTO{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, LastFetchedAt: c.LastFetchedAt}
}

func mapSlice[T, D any](rows []T, fn func(T) D) []D {
	out := make([]D, 0, len(rows))
	for _, row := range rows {
		out = append(out, fn(row))
	}
	return out
}
