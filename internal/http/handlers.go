package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"kharcha/internal/auth"
	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/report"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

const healthMessage = "Kharcha Expense Tracker API"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string `json:"message"`
	auth.Session
}

type addExpenseResponse struct {
	Message string       `json:"message"`
	Data    core.Expense `json:"data"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Message: healthMessage})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentAuth).WarnContext(ctx, "Login rejected",
			log.FieldOperation, log.OpLogin,
			log.FieldEmail, req.Email,
			log.FieldClientIP, extractClientIP(r))
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	log.FromContext(ctx).WithComponent(log.ComponentAuth).InfoContext(ctx, "Login succeeded",
		log.FieldOperation, log.OpLogin, log.FieldEmail, session.Email)
	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Session: session})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	listing := s.expenses.List(r.Context())
	expenses := listing.Expenses
	if expenses == nil {
		expenses = []core.Expense{}
	}
	w.Header().Set("X-Data-Source", string(listing.Source))
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	in, err := core.NewExpenseFromPayload(payload)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Rejected expense payload",
			log.FieldOperation, log.OpCreate, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec, err := s.expenses.Add(ctx, in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, addExpenseResponse{Message: "Expense added successfully", Data: rec})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeMessage(w, http.StatusOK, "Expense deleted successfully")
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	months, err := s.reports.Months(ctx)
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentReport).Failure(ctx,
			"Failed to summarize months", log.OpList, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if months == nil {
		months = []core.MonthSummary{}
	}
	writeJSON(w, http.StatusOK, months)
}

func (s *Server) handleDownloadAll(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := s.reports.Full(r.Context(), format)
	if err != nil {
		s.exportFailed(w, r, err)
		return
	}
	writeFile(w, f)
}

func (s *Server) handleDownloadMonthly(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r.PathValue("year"), r.PathValue("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := s.reports.Monthly(r.Context(), year, month, format)
	if err != nil {
		s.exportFailed(w, r, err)
		return
	}
	writeFile(w, f)
}

func (s *Server) exportFailed(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	log.FromContext(ctx).WithComponent(log.ComponentReport).Failure(ctx,
		"Export failed", log.OpExport, err, log.FieldPath, r.URL.Path)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// decodeJSON reads a single JSON value from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// parseYearMonth validates the year and month path segments.
func parseYearMonth(ys, ms string) (int, int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, fmt.Errorf("invalid year %q", ys)
	}
	month, err := strconv.Atoi(strings.TrimSpace(ms))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %q", ms)
	}
	return year, month, nil
}
