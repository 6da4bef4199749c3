package handlers

import (
	"net/http"

	"github.com/dvloznov/statement-import/internal/api/middleware"
)

// Router groups the handlers served by the API.
type Router struct {
	Imports      *ImportsHandler
	Accounts     *AccountsHandler
	Categories   *CategoriesHandler
	Presets      *PresetsHandler
	Transactions *TransactionsHandler
	Jobs         *JobsHandler
}

// Handler registers every route on a new mux.
func (rt Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if h := rt.Imports; h != nil {
		mux.HandleFunc("POST /api/imports", h.CreateImport)
		mux.HandleFunc("GET /api/imports", h.ListImports)
		mux.HandleFunc("GET /api/imports/{id}", h.GetImport)
		mux.HandleFunc("DELETE /api/imports/{id}", h.DeleteImport)
		mux.HandleFunc("POST /api/imports/{id}/mapping", h.SetMapping)
		mux.HandleFunc("POST /api/imports/{id}/start", h.StartImport)
		mux.HandleFunc("POST /api/imports/{id}/password", h.SubmitPassword)
		mux.HandleFunc("POST /api/imports/{id}/selection", h.UpdateSelection)
		mux.HandleFunc("POST /api/imports/{id}/categorize", h.Categorize)
		mux.HandleFunc("DELETE /api/imports/{id}/candidates/{cid}", h.DeleteCandidate)
		mux.HandleFunc("POST /api/imports/{id}/delete-selected", h.DeleteSelected)
		mux.HandleFunc("POST /api/imports/{id}/commit", h.Commit)
		mux.HandleFunc("POST /api/imports/{id}/retry", h.Retry)
	}
	if h := rt.Accounts; h != nil {
		mux.HandleFunc("GET /api/accounts", h.ListAccounts)
	}
	if h := rt.Categories; h != nil {
		mux.HandleFunc("GET /api/categories", h.ListCategories)
	}
	if h := rt.Presets; h != nil {
		mux.HandleFunc("GET /api/presets", h.ListPresets)
	}
	if h := rt.Transactions; h != nil {
		mux.HandleFunc("GET /api/transactions", h.ListTransactions)
	}
	if h := rt.Jobs; h != nil {
		mux.HandleFunc("GET /api/jobs", h.ListJobs)
		mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	}

	return mux
}
