package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/packfinderz-pos/api/responses"
	"github.com/angelmondragon/packfinderz-pos/api/validators"
	"github.com/angelmondragon/packfinderz-pos/internal/syncer"
	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

type SyncRunner interface {
	SyncData(ctx context.Context) syncer.PassResult
}

// CatalogReader serves the cached catalog and its watermarks for the terminal scope.
type CatalogReader interface {
	Products(ctx context.Context) ([]models.CachedProduct, error)
	Categories(ctx context.Context) ([]models.CachedCategory, error)
	Customers(ctx context.Context) ([]models.CachedCustomer, error)
	Watermarks(ctx context.Context) (map[string]time.Time, error)
}

type NoticeFeed interface {
	Since(after uint64) []syncer.Notice
}

// RunSync runs one pass inline. A pass already in flight yields 202 with skipped set.
func RunSync(runner SyncRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync unavailable"))
			return
		}
		result := runner.SyncData(r.Context())
		if result.Skipped {
			responses.WriteSuccessStatus(w, http.StatusAccepted, result)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func SyncState(reader CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		marks, err := reader.Watermarks(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Storage(err, "load watermarks"))
			return
		}
		responses.WriteSuccess(w, marks)
	}
}

func ListProducts(reader CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return listCatalog(reader, logg, func(ctx context.Context) (any, error) {
		rows, err := reader.Products(ctx)
		return mapSlice(rows, toProductDTO), err
	})
}

func ListCategories(reader CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return listCatalog(reader, logg, func(ctx context.Context) (any, error) {
		rows, err := reader.Categories(ctx)
		return mapSlice(rows, toCategoryDTO), err
	})
}

func ListCustomers(reader CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return listCatalog(reader, logg, func(ctx context.Context) (any, error) {
		rows, err := reader.Customers(ctx)
		return mapSlice(rows, toCustomerDTO), err
	})
}

func listCatalog(reader CatalogReader, logg *logger.Logger, load func(ctx context.Context) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		rows, err := load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Storage(err, "read catalog cache"))
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func ListNotices(feed NoticeFeed, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if feed == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notice feed unavailable"))
			return
		}
		after, err := validators.ParseQueryUint(r, "after")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, feed.Since(after))
	}
}
