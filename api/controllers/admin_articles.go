package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/zerymnor-storefront/api/responses"
	"github.com/angelmondragon/zerymnor-storefront/api/validators"
	"github.com/angelmondragon/zerymnor-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
)

// ArticleAdmin manages articles in the remote store.
type ArticleAdmin interface {
	List(ctx context.Context) ([]catalog.Article, error)
	Get(ctx context.Context, id string) (catalog.Article, error)
	Create(ctx context.Context, input catalog.ArticleInput) (catalog.Article, error)
	Update(ctx context.Context, id string, input catalog.ArticleInput) (catalog.Article, error)
	Delete(ctx context.Context, id string) error
}

const (
	maxArticleTitleRunes     = 200
	maxArticleShortDescRunes = 500
	maxArticleLongDescRunes  = 10000
)

type articleRequest struct {
	Title            string          `json:"title" validate:"omitempty,max=200"`
	ShortDescription string          `json:"short_description" validate:"omitempty,max=500"`
	LongDescription  string          `json:"long_description"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock" validate:"gte=0"`
	ImageURL         string          `json:"image_url" validate:"omitempty,url"`
}

func (p articleRequest) toInput() catalog.ArticleInput {
	return catalog.ArticleInput{
		Title:            validators.SanitizeString(p.Title, maxArticleTitleRunes),
		ShortDescription: validators.SanitizeString(p.ShortDescription, maxArticleShortDescRunes),
		LongDescription:  validators.SanitizeString(p.LongDescription, maxArticleLongDescRunes),
		Price:            p.Price,
		Stock:            p.Stock,
		ImageURL:         p.ImageURL,
	}
}

func AdminListArticles(svc ArticleAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "article admin unavailable"))
			return
		}
		articles, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"articles": articles})
	}
}

func AdminGetArticle(svc ArticleAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "article admin unavailable"))
			return
		}
		article, err := svc.Get(r.Context(), strings.TrimSpace(chi.URLParam(r, "articleId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, article)
	}
}

func AdminCreateArticle(svc ArticleAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "article admin unavailable"))
			return
		}

		var payload articleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		article, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, article)
	}
}

func AdminUpdateArticle(svc ArticleAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "article admin unavailable"))
			return
		}

		var payload articleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		articleID := strings.TrimSpace(chi.URLParam(r, "articleId"))
		article, err := svc.Update(r.Context(), articleID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, article)
	}
}

func AdminDeleteArticle(svc ArticleAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "article admin unavailable"))
			return
		}
		articleID := strings.TrimSpace(chi.URLParam(r, "articleId"))
		if err := svc.Delete(r.Context(), articleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": articleID, "status": "deleted"})
	}
}
