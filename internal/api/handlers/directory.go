package handlers

import (
	"net/http"
	"sort"

	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/csvimport"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/store"
	"github.com/rs/zerolog"
)

// AccountsHandler handles account-related requests.
type AccountsHandler struct {
	accounts store.AccountDirectory
	log      zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(accounts store.AccountDirectory, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{accounts: accounts, log: log}
}

// ListAccounts handles GET /api/accounts.
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.accounts.ListAccounts(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CategoriesHandler handles category-related requests.
type CategoriesHandler struct {
	categories store.CategoryDirectory
	log        zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(categories store.CategoryDirectory, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{categories: categories, log: log}
}

// ListCategories handles GET /api/categories.
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.categories.ListCategories(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// PresetsHandler lists the configured column mapping presets.
type PresetsHandler struct {
	presets csvimport.Presets
}

func NewPresetsHandler(presets csvimport.Presets) *PresetsHandler {
	return &PresetsHandler{presets: presets}
}

// ListPresets handles GET /api/presets.
func (h *PresetsHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	type preset struct {
		Name    string               `json:"name"`
		Mapping domain.ColumnMapping `json:"mapping"`
	}
	out := make([]preset, 0, len(h.presets))
	for name, m := range h.presets {
		out = append(out, preset{Name: name, Mapping: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"presets": out,
		"count":   len(out),
	})
}
