package handlers

import (
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/store"
	"github.com/rs/zerolog"
)

// TransactionsHandler handles committed transaction requests.
type TransactionsHandler struct {
	lister store.TransactionLister
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(lister store.TransactionLister, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{lister: lister, log: log}
}

// ListTransactions handles GET /api/transactions.
// Query parameters: account_id, start_date, end_date (YYYY-MM-DD), limit, offset.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseListFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.lister.ListTransactions(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseListFilter(r *http.Request) (store.ListFilter, error) {
	q := r.URL.Query()
	filter := store.ListFilter{AccountID: q.Get("account_id")}

	if v := q.Get("start_date"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return filter, queryError("Invalid start_date format (use YYYY-MM-DD)")
		}
		filter.From = d
	}
	if v := q.Get("end_date"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return filter, queryError("Invalid end_date format (use YYYY-MM-DD)")
		}
		filter.To = d
	}
	if filter.From.IsValid() && filter.To.IsValid() && filter.To.Before(filter.From) {
		return filter, queryError("end_date is before start_date")
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, queryError("Invalid " + name)
	}
	return n, nil
}
