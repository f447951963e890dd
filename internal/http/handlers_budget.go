package http

import (
	"net/http"

	"tally/internal/core"
)

func budgetKey(r *http.Request) (int64, core.YearMonth, error) {
	id, err := pathID(r, "categoryId")
	if err != nil {
		return 0, core.YearMonth{}, err
	}
	month, err := pathMonth(r, "month")
	if err != nil {
		return 0, core.YearMonth{}, err
	}
	return id, month, nil
}

// handleSetBudget creates or replaces the limit of one category in one month.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	id, month, err := budgetKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.Set(r.Context(), id, month, *req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, month, err := budgetKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Budgets.Delete(r.Context(), id, month); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetRemaining(w http.ResponseWriter, r *http.Request) {
	id, month, err := budgetKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rem, err := s.svc.Budgets.Remaining(r.Context(), id, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, remainingResponse{CategoryID: id, Month: month.String(), Remaining: amount(rem)})
}

func (s *Server) handleBudgetExceeded(w http.ResponseWriter, r *http.Request) {
	id, month, err := budgetKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	exceeded, err := s.svc.Budgets.IsExceeded(r.Context(), id, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exceededResponse{CategoryID: id, Month: month.String(), Exceeded: exceeded})
}

// handleBudgetStatus reports every configured budget of ?month=YYYY-MM,
// defaulting to the current month.
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	month, err := queryMonth(r.URL.Query(), "month", s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.Budgets.MonthlyStatus(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetStatusResponses(list))
}
