// Package api exposes the transaction store over HTTP: account listings,
// transaction history and the access code mailbox used during updates.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"banking/internal/config"
	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/store"
)

// Server serves the read API and the access code mailbox.
type Server struct {
	store   *store.Store
	banking *config.Banking
	log     logging.Logger
}

// New builds the API server around the store and the banking topology.
func New(s *store.Store, banking *config.Banking, log logging.Logger) *Server {
	return &Server{store: s, banking: banking, log: log}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts", s.listAccounts)
	mux.HandleFunc("GET /accounts/{id}", s.getAccount)
	mux.HandleFunc("GET /accounts/{id}/transactions", s.listTransactions)
	mux.HandleFunc("PUT /accounts/{id}/access_code", s.putAccessCode)
	return mux
}

type accountSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	BankID string `json:"bank_id,omitempty"`
}

type accountDetail struct {
	accountSummary
	Balance *string `json:"balance"`
}

func summarize(account models.AccountConfig) accountSummary {
	return accountSummary{
		ID:     account.ID,
		Name:   account.Name,
		Type:   string(account.Type),
		BankID: account.BankID,
	}
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := s.banking.Accounts()
	summaries := make([]accountSummary, 0, len(accounts))
	for _, account := range accounts {
		summaries = append(summaries, summarize(account))
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	account := s.banking.FindAccount(r.PathValue("id"))
	if account == nil {
		s.writeError(w, http.StatusNotFound, "unknown account")
		return
	}

	detail := accountDetail{accountSummary: summarize(*account)}
	last, err := s.store.FindLast(store.LogKey{Kind: account.Type, ID: account.ID})
	if err != nil {
		s.internalError(w, err)
		return
	}
	if last != nil && last.HasBalance {
		balance := last.Balance.String()
		detail.Balance = &balance
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	account := s.banking.FindAccount(r.PathValue("id"))
	if account == nil {
		s.writeError(w, http.StatusNotFound, "unknown account")
		return
	}

	transactions, err := s.store.Find(
		store.LogKey{Kind: account.Type, ID: account.ID},
		store.FindOptions{SortDirection: store.Descending})
	if err != nil {
		s.internalError(w, err)
		return
	}

	documents := make([]map[string]any, 0, len(transactions))
	for _, tx := range transactions {
		documents = append(documents, store.EncodeTransaction(tx))
	}
	s.writeJSON(w, http.StatusOK, documents)
}

type accessCodeRequest struct {
	Code string `json:"code"`
	Date string `json:"date"`
}

func (s *Server) putAccessCode(w http.ResponseWriter, r *http.Request) {
	account := s.banking.FindAccount(r.PathValue("id"))
	if account == nil {
		s.writeError(w, http.StatusNotFound, "unknown account")
		return
	}

	var request accessCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.Code == "" {
		s.writeError(w, http.StatusBadRequest, "code must not be empty")
		return
	}
	date := time.Now()
	if request.Date != "" {
		parsed, err := time.Parse(models.DateLayout, request.Date)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date (expected %s)", models.DateLayout))
			return
		}
		date = parsed
	}

	code := models.AccessCode{Code: request.Code, Date: date}
	if err := s.store.PutAccessCode(account.ID, code); err != nil {
		s.internalError(w, err)
		return
	}
	s.log.Info("Access code received",
		logging.Field{Key: logging.FieldAccount, Value: account.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.WithError(err).Error("Failed to encode API response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("API request failed")
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
