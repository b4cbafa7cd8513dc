package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/enum"
	"github.com/feastly-app/api/internal/handler"
	"github.com/feastly-app/api/internal/middleware"
	"github.com/google/uuid"
)

type mockReportStore struct {
	turnoverFunc func(ctx context.Context, arg database.GetDailyTurnoverParams) ([]database.GetDailyTurnoverRow, error)
	statusCounts map[string]int64
	turnoverSum  pgtype.Numeric
}

func (m *mockReportStore) GetDailyTurnover(ctx context.Context, arg database.GetDailyTurnoverParams) ([]database.GetDailyTurnoverRow, error) {
	return m.turnoverFunc(ctx, arg)
}

func (m *mockReportStore) CountOrdersByStatus(_ context.Context, arg database.CountOrdersByStatusParams) (int64, error) {
	return m.statusCounts[arg.Status], nil
}

func (m *mockReportStore) SumOrderAmountByStatus(_ context.Context, _ database.SumOrderAmountByStatusParams) (pgtype.Numeric, error) {
	return m.turnoverSum, nil
}

func setupReportRouter(store handler.ReportStore) chi.Router {
	r := chi.NewRouter()
	r.Route("/admin/reports", func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		handler.NewReportHandler(store).RegisterRoutes(r)
	})
	return r
}

func TestTurnover_ExplicitRange(t *testing.T) {
	var gotParams database.GetDailyTurnoverParams
	store := &mockReportStore{
		turnoverFunc: func(_ context.Context, arg database.GetDailyTurnoverParams) ([]database.GetDailyTurnoverRow, error) {
			gotParams = arg
			day, _ := time.Parse("2006-01-02", "2026-08-30")
			return []database.GetDailyTurnoverRow{
				{Day: pgtype.Date{Time: day, Valid: true}, OrderCount: 4, Turnover: makeNumeric(t, "412.00")},
			}, nil
		},
	}
	router := setupReportRouter(store)
	token := authToken(t, uuid.New(), enum.UserRoleAdmin)

	rr := doRequest(t, router, "GET", "/admin/reports/turnover?start_date=2026-08-01&end_date=2026-08-31", nil, token)

	wantStatus(t, rr, http.StatusOK)
	if gotParams.Status != enum.OrderStatusCompleted {
		t.Errorf("status filter: got %q, want %q", gotParams.Status, enum.OrderStatusCompleted)
	}
	// The caller's end date is inclusive; the query's upper bound is the next day.
	if got := gotParams.EndDate.Format("2006-01-02"); got != "2026-09-01" {
		t.Errorf("query end date: got %s, want 2026-09-01", got)
	}

	resp := decodeJSON(t, rr)
	if resp["end"] != "2026-08-31" {
		t.Errorf("end: got %v, want 2026-08-31", resp["end"])
	}
	entries, ok := resp["entries"].([]interface{})
	if !ok || len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %v", resp["entries"])
	}
	entry := entries[0].(map[string]interface{})
	if entry["day"] != "2026-08-30" {
		t.Errorf("day: got %v, want 2026-08-30", entry["day"])
	}
	if entry["turnover"] != "412.00" {
		t.Errorf("turnover: got %v, want 412.00", entry["turnover"])
	}
}

func TestTurnover_InvertedRange(t *testing.T) {
	router := setupReportRouter(&mockReportStore{})
	token := authToken(t, uuid.New(), enum.UserRoleAdmin)

	rr := doRequest(t, router, "GET", "/admin/reports/turnover?start_date=2026-08-31&end_date=2026-08-01", nil, token)

	wantStatus(t, rr, http.StatusBadRequest)
}

func TestTurnover_BadDateFormat(t *testing.T) {
	router := setupReportRouter(&mockReportStore{})
	token := authToken(t, uuid.New(), enum.UserRoleAdmin)

	rr := doRequest(t, router, "GET", "/admin/reports/turnover?start_date=Aug-01", nil, token)

	wantStatus(t, rr, http.StatusBadRequest)
}

func TestOverview(t *testing.T) {
	store := &mockReportStore{
		statusCounts: map[string]int64{
			enum.OrderStatusCompleted: 12,
			enum.OrderStatusCancelled: 2,
		},
		turnoverSum: makeNumeric(t, "1536.00"),
	}
	router := setupReportRouter(store)
	token := authToken(t, uuid.New(), enum.UserRoleAdmin)

	rr := doRequest(t, router, "GET", "/admin/reports/overview", nil, token)

	wantStatus(t, rr, http.StatusOK)
	resp := decodeJSON(t, rr)
	if resp["completed_today"] != float64(12) {
		t.Errorf("completed_today: got %v, want 12", resp["completed_today"])
	}
	if resp["cancelled_today"] != float64(2) {
		t.Errorf("cancelled_today: got %v, want 2", resp["cancelled_today"])
	}
	if resp["turnover_today"] != "1536.00" {
		t.Errorf("turnover_today: got %v, want 1536.00", resp["turnover_today"])
	}
}
