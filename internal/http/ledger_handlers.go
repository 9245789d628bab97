package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"cashstash/internal/core"
	"cashstash/internal/services"
)

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("type")
	if raw == "" {
		writeJSON(w, http.StatusOK, core.Categories())
		return
	}
	typ, err := core.ParseTransactionType(raw)
	if err != nil {
		fail(w, r, msgCategories, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": core.CategoriesFor(typ),
		"default":    core.DefaultCategory(typ).ID,
	})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		fail(w, r, msgLoadTx, err)
		return
	}
	limit, err := queryInt(r, "limit", services.DefaultPageSize)
	if err != nil {
		fail(w, r, msgLoadTx, err)
		return
	}
	page, err := s.deps.Ledger.List(r.Context(), sessionFrom(r.Context()), services.Page{Offset: offset, Limit: limit})
	if err != nil {
		fail(w, r, msgLoadTx, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Items:      newTransactionResponses(page.Items),
		Total:      page.Total,
		NextOffset: page.NextOffset,
		HasMore:    page.HasMore,
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, msgSaveTx, err)
		return
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		fail(w, r, msgSaveTx, err)
		return
	}
	amount, err := req.Amount.Parse()
	if err != nil {
		fail(w, r, msgSaveTx, err)
		return
	}
	category := core.CategoryID(req.CategoryID)
	if category == "" {
		category = core.DefaultCategory(typ).ID
	}

	res, err := s.deps.Ledger.Add(r.Context(), sessionFrom(r.Context()), services.AddInput{
		Type:        typ,
		Amount:      amount,
		Description: req.Description,
		CategoryID:  category,
	})
	if err != nil {
		fail(w, r, msgSaveTx, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateTransactionResponse{
		Transaction: newTransactionResponse(res.Transaction),
		Warning:     newWarningBody(res.Warning),
	})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, msgUpdateTx, err)
		return
	}
	amount, err := req.Amount.Parse()
	if err != nil {
		fail(w, r, msgUpdateTx, err)
		return
	}
	updated, err := s.deps.Ledger.Update(r.Context(), sessionFrom(r.Context()), mux.Vars(r)["id"], services.UpdateInput{
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		fail(w, r, msgUpdateTx, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.Delete(r.Context(), sessionFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		fail(w, r, msgDeleteTx, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Ledger.Summary(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		fail(w, r, msgSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{
		DisplayName: sum.DisplayName,
		Totals:      newTotalsResponse(sum.Totals),
		Recent:      newTransactionResponses(sum.Recent),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Ledger.Stats(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		fail(w, r, msgStats, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(stats))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.deps.Ledger.Balance(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		fail(w, r, msgBalance, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Balance: bal, Display: core.FormatLKR(bal)})
}
