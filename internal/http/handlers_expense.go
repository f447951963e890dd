package http

import (
	"net/http"
	"strconv"
)

// handleFilterExpenses lists expenses matching the query's filter criteria.
func (s *Server) handleFilterExpenses(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.Expenses.Filter(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponses(list))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		writeError(w, r, err)
		return
	}
	exp, err := req.toExpense()
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.svc.Expenses.Create(r.Context(), exp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/expenses/"+strconv.FormatInt(saved.ID, 10))
	writeJSON(w, http.StatusCreated, toExpenseResponse(saved))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(e))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req expenseUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := req.toUpdate()
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.Update(r.Context(), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Expenses.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Expenses.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponses(list))
}

func (s *Server) handleCurrentMonthExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Expenses.CurrentMonth(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponses(list))
}
