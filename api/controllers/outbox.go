package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/packfinderz-pos/api/responses"
	"github.com/angelmondragon/packfinderz-pos/api/validators"
	"github.com/angelmondragon/packfinderz-pos/internal/outbox"
	"github.com/angelmondragon/packfinderz-pos/internal/sales"
	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

const maxOutboxListLimit = 500

// OutboxService is the queue surface the admin API drives.
type OutboxService interface {
	Enqueue(ctx context.Context, sale sales.Sale) (*models.OutboxEntry, error)
	List(ctx context.Context, filter outbox.ListFilter) ([]models.OutboxEntry, error)
	Stats(ctx context.Context) (map[enums.OutboxStatus]int64, error)
	Delete(ctx context.Context, id uint64) error
	Requeue(ctx context.Context, id uint64) (*models.OutboxEntry, error)
}

func outboxUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outbox service unavailable"))
}

// EnqueueSale records a finished sale for background delivery.
func EnqueueSale(svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			outboxUnavailable(w, r, logg)
			return
		}
		var sale sales.Sale
		if err := validators.DecodeJSON(r, &sale); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Enqueue(r.Context(), sale)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toOutboxEntryDTO(*entry))
	}
}

func ListOutbox(svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			outboxUnavailable(w, r, logg)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, maxOutboxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := outbox.ListFilter{
			Status: enums.OutboxStatus(r.URL.Query().Get("status")),
			Limit:  limit,
		}
		entries, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(entries, toOutboxEntryDTO))
	}
}

func OutboxStats(svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			outboxUnavailable(w, r, logg)
			return
		}
		counts, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, counts)
	}
}

func DeleteOutboxEntry(svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			outboxUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "deleted": true})
	}
}

func RequeueOutboxEntry(svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			outboxUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Requeue(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOutboxEntryDTO(*entry))
	}
}
