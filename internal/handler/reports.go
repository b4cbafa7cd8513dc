package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/enum"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries.
type ReportStore interface {
	GetDailyTurnover(ctx context.Context, arg database.GetDailyTurnoverParams) ([]database.GetDailyTurnoverRow, error)
	CountOrdersByStatus(ctx context.Context, arg database.CountOrdersByStatusParams) (int64, error)
	SumOrderAmountByStatus(ctx context.Context, arg database.SumOrderAmountByStatusParams) (pgtype.Numeric, error)
}

// ReportHandler handles merchant reporting endpoints.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers report endpoints on the given Chi router.
// Expected to be mounted inside an admin-only subrouter: /admin/reports
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/turnover", h.Turnover)
	r.Get("/overview", h.Overview)
}

// --- Response types ---

type dailyTurnoverEntry struct {
	Day        string `json:"day"`
	OrderCount int64  `json:"order_count"`
	Turnover   string `json:"turnover"`
}

type turnoverResponse struct {
	Start   string               `json:"start"`
	End     string               `json:"end"`
	Entries []dailyTurnoverEntry `json:"entries"`
}

type overviewResponse struct {
	CompletedToday int64  `json:"completed_today"`
	CancelledToday int64  `json:"cancelled_today"`
	TurnoverToday  string `json:"turnover_today"`
}

// --- Handlers ---

// Turnover handles GET /admin/reports/turnover: per-day completed turnover
// over the requested range. Defaults to the last 30 days.
func (h *ReportHandler) Turnover(w http.ResponseWriter, r *http.Request) {
	end := time.Now().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -30)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		// End date is inclusive for the caller, exclusive in the query.
		end = t.AddDate(0, 0, 1)
	}
	if !start.Before(end) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_date must be before end_date"})
		return
	}

	rows, err := h.store.GetDailyTurnover(r.Context(), database.GetDailyTurnoverParams{
		Status:    enum.OrderStatusCompleted,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		log.Printf("ERROR: daily turnover: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	entries := make([]dailyTurnoverEntry, len(rows))
	for i, row := range rows {
		entries[i] = dailyTurnoverEntry{
			Day:        row.Day.Time.Format("2006-01-02"),
			OrderCount: row.OrderCount,
			Turnover:   numericToString(row.Turnover),
		}
	}

	writeJSON(w, http.StatusOK, turnoverResponse{
		Start:   start.Format("2006-01-02"),
		End:     end.AddDate(0, 0, -1).Format("2006-01-02"),
		Entries: entries,
	})
}

// Overview handles GET /admin/reports/overview: today's headline numbers.
func (h *ReportHandler) Overview(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	today := database.CountOrdersByStatusParams{
		StartDate: pgtype.Timestamptz{Time: dayStart, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: dayEnd, Valid: true},
	}

	completedParams := today
	completedParams.Status = enum.OrderStatusCompleted
	completed, err := h.store.CountOrdersByStatus(r.Context(), completedParams)
	if err != nil {
		log.Printf("ERROR: overview completed count: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	cancelledParams := today
	cancelledParams.Status = enum.OrderStatusCancelled
	cancelled, err := h.store.CountOrdersByStatus(r.Context(), cancelledParams)
	if err != nil {
		log.Printf("ERROR: overview cancelled count: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	turnover, err := h.store.SumOrderAmountByStatus(r.Context(), database.SumOrderAmountByStatusParams{
		Status:    enum.OrderStatusCompleted,
		StartDate: pgtype.Timestamptz{Time: dayStart, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: dayEnd, Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: overview turnover: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, overviewResponse{
		CompletedToday: completed,
		CancelledToday: cancelled,
		TurnoverToday:  numericToString(turnover),
	})
}
