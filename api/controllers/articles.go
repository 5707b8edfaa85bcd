package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/zerymnor-storefront/api/responses"
	"github.com/angelmondragon/zerymnor-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
)

// ArticleReader is the read side of the catalog cache.
type ArticleReader interface {
	List() []catalog.Article
	Find(id string) (catalog.Article, bool)
}

// CatalogRefresher reloads the catalog snapshot.
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
	RefreshedAt() time.Time
}

type catalogRefreshResponse struct {
	Articles    int       `json:"articles"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// ArticleList returns the cached catalog.
func ArticleList(cat ArticleReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"articles": cat.List()})
	}
}

// ArticleDetail returns one cached article.
func ArticleDetail(cat ArticleReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		articleID := strings.TrimSpace(chi.URLParam(r, "articleId"))
		article, ok := cat.Find(articleID)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "article not found"))
			return
		}
		responses.WriteSuccess(w, article)
	}
}

// CatalogRefresh reloads the snapshot from the remote store.
func CatalogRefresh(cache CatalogRefresher, cat ArticleReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cache == nil || cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		if err := cache.Refresh(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, catalogRefreshResponse{
			Articles:    len(cat.List()),
			RefreshedAt: cache.RefreshedAt(),
		})
	}
}
