package http

import (
	"net/http"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.expenses.CreateExpense(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	res, err := s.expenses.GetAllExpenses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.expenses.GetExpenseByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handlePatchExpense updates the name, the amount, or both.
func (s *Server) handlePatchExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw, err := decodeObject(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := core.ParseExpensePatch(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.expenses.PatchExpense(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ack, err := s.expenses.DeleteExpense(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}
