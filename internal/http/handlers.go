package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aditi5926/expense-tracker/internal/core"
	"github.com/aditi5926/expense-tracker/internal/ledger"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type accountResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type expenseRequest struct {
	Description  string  `json:"description"`
	Category     string  `json:"category"`
	Reimbursable bool    `json:"reimbursable"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
}

type expenseResponse struct {
	ID           int64     `json:"id"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Reimbursable bool      `json:"reimbursable"`
	Quantity     float64   `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
	Total        float64   `json:"total"`
	CreatedAt    time.Time `json:"created_at"`
}

type expensePageResponse struct {
	Expenses  []expenseResponse `json:"expenses"`
	Page      int               `json:"page"`
	PageSize  int               `json:"page_size"`
	PageTotal float64           `json:"page_total"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:           e.ID,
		Description:  e.Description,
		Category:     string(e.Category),
		Reimbursable: e.Reimbursable,
		Quantity:     e.Quantity,
		UnitPrice:    e.UnitPrice,
		Total:        e.Total,
		CreatedAt:    e.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.ledger.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse{ID: account.ID, Username: account.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.ledger.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{ID: account.ID, Username: account.Username})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, account core.Account) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.ledger.AddExpense(r.Context(), account.ID, ledger.ExpenseInput{
		Description:  req.Description,
		Category:     req.Category,
		Reimbursable: req.Reimbursable,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toExpenseResponse(created))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, account core.Account) {
	query := r.URL.Query()

	page := 1
	if v := query.Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page parameter")
			return
		}
		page = parsed
	}

	pageSize := 0 // ledger default
	if v := query.Get("page_size"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page_size parameter")
			return
		}
		pageSize = parsed
	}

	expenses, err := s.ledger.ListExpenses(r.Context(), account.ID, query.Get("category"), page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := expensePageResponse{
		Expenses:  make([]expenseResponse, 0, len(expenses)),
		Page:      page,
		PageSize:  pageSize,
		PageTotal: s.ledger.PageTotal(expenses),
	}
	if pageSize == 0 {
		resp.PageSize = ledger.DefaultPageSize
	}
	for _, e := range expenses {
		resp.Expenses = append(resp.Expenses, toExpenseResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request, account core.Account) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	expense, err := s.ledger.GetExpense(r.Context(), account.ID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, account core.Account) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.ledger.EditExpense(r.Context(), account.ID, id, ledger.ExpenseInput{
		Description:  req.Description,
		Category:     req.Category,
		Reimbursable: req.Reimbursable,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, account core.Account) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.ledger.DeleteExpense(r.Context(), account.ID, id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request, account core.Account) {
	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := core.Other
	if s.categorizer != nil {
		category = s.categorizer.Classify(r.Context(), req.Description)
	}

	writeJSON(w, http.StatusOK, map[string]string{"category": string(category)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, account core.Account) {
	summary, err := s.ledger.Summary(r.Context(), account.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type categoryTotal struct {
		Category string  `json:"category"`
		Total    float64 `json:"total"`
		Count    int64   `json:"count"`
	}
	resp := struct {
		Total      float64         `json:"total"`
		ByCategory []categoryTotal `json:"by_category"`
	}{
		Total:      summary.Total,
		ByCategory: make([]categoryTotal, 0, len(summary.ByCategory)),
	}
	for _, ct := range summary.ByCategory {
		resp.ByCategory = append(resp.ByCategory, categoryTotal{
			Category: string(ct.Category),
			Total:    ct.Total,
			Count:    ct.Count,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return 0, false
	}
	return id, true
}
