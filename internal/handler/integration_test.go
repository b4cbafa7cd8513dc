//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/feastly-app/api/internal/config"
	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/payment"
	"github.com/feastly-app/api/internal/router"
	"github.com/feastly-app/api/internal/ws"
)

// TestIntegrationFlow exercises the full order lifecycle against a real
// PostgreSQL database: cart, submission, payment callback, and the merchant
// transitions through to completion.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:        "8083",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	logger := zap.NewNop()
	hub := ws.NewHub(logger)
	// NOTE: hub.Run() goroutine leaks on test exit; Hub has no shutdown
	// mechanism. Acceptable for tests.
	go hub.Run()

	r := router.New(cfg, queries, pool, hub, payment.Sandbox{}, logger)

	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Seed users, menu and address (manual DB inserts to bootstrap) ---
	adminID := createUser(t, ctx, pool, "admin@test.com", "Test Admin", "ADMIN")
	customerID := createUser(t, ctx, pool, "diner@test.com", "Test Diner", "CUSTOMER")
	dishID := createDish(t, ctx, pool, "Mapo Tofu", "22.00")
	addressID := createAddress(t, ctx, pool, customerID)

	// --- 2. Login as customer ---
	customerToken := login(t, server, "diner@test.com", "password123")

	// --- 3. Add the same dish twice; the cart merges it into one line ---
	addCartItem(t, server, dishID, customerToken)
	addCartItem(t, server, dishID, customerToken)

	cart := httpGetJSON(t, server, "/cart", customerToken)
	items := cart["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("cart items: got %d, want 1 merged line", len(items))
	}
	if qty := items[0].(map[string]interface{})["quantity"].(float64); qty != 2 {
		t.Fatalf("cart quantity: got %v, want 2", qty)
	}
	if cart["total"].(string) != "44.00" {
		t.Fatalf("cart total: got %s, want 44.00", cart["total"].(string))
	}

	// --- 4. Submit the order ---
	orderResp := httpPostJSON(t, server, "/orders", map[string]interface{}{
		"address_id": addressID.String(),
		"remark":     "extra spicy",
	}, customerToken)
	orderID := uuid.MustParse(orderResp["id"].(string))
	orderNumber := orderResp["number"].(string)
	if orderResp["amount"].(string) != "44.00" {
		t.Fatalf("order amount: got %s, want 44.00", orderResp["amount"].(string))
	}

	// Submission empties the cart.
	cart = httpGetJSON(t, server, "/cart", customerToken)
	if n := len(cart["items"].([]interface{})); n != 0 {
		t.Fatalf("cart items after submit: got %d, want 0", n)
	}

	order := httpGetJSON(t, server, fmt.Sprintf("/orders/%s", orderID), customerToken)
	if order["status"].(string) != "PENDING_PAYMENT" {
		t.Fatalf("order status after submit: got %s, want PENDING_PAYMENT", order["status"].(string))
	}

	// --- 5. Payment provider callback flips the order to TO_BE_CONFIRMED ---
	notifyResp := httpPostJSON(t, server, "/notify/payment", map[string]interface{}{
		"order_number": orderNumber,
	}, "")
	if notifyResp["code"].(string) != "SUCCESS" {
		t.Fatalf("payment notify code: got %s, want SUCCESS", notifyResp["code"].(string))
	}

	order = httpGetJSON(t, server, fmt.Sprintf("/orders/%s", orderID), customerToken)
	if order["status"].(string) != "TO_BE_CONFIRMED" {
		t.Fatalf("order status after payment: got %s, want TO_BE_CONFIRMED", order["status"].(string))
	}
	if order["pay_status"].(string) != "PAID" {
		t.Fatalf("pay status after payment: got %s, want PAID", order["pay_status"].(string))
	}

	// A second callback for the same order is a harmless no-op.
	notifyResp = httpPostJSON(t, server, "/notify/payment", map[string]interface{}{
		"order_number": orderNumber,
	}, "")
	if notifyResp["code"].(string) != "SUCCESS" {
		t.Fatalf("duplicate payment notify code: got %s, want SUCCESS", notifyResp["code"].(string))
	}

	// --- 6. Merchant walks the order to completion ---
	adminToken := login(t, server, "admin@test.com", "password123")

	stats := httpGetJSON(t, server, "/admin/orders/statistics", adminToken)
	if stats["to_be_confirmed"].(float64) != 1 {
		t.Fatalf("statistics to_be_confirmed: got %v, want 1", stats["to_be_confirmed"])
	}

	transitionOrder(t, server, orderID, "confirm", adminToken)
	transitionOrder(t, server, orderID, "delivery", adminToken)
	transitionOrder(t, server, orderID, "complete", adminToken)

	order = httpGetJSON(t, server, fmt.Sprintf("/orders/%s", orderID), customerToken)
	if order["status"].(string) != "COMPLETED" {
		t.Fatalf("final order status: got %s, want COMPLETED", order["status"].(string))
	}

	// --- 7. Today's numbers include the completed order ---
	overview := httpGetJSON(t, server, "/admin/reports/overview", adminToken)
	if overview["completed_today"].(float64) != 1 {
		t.Fatalf("overview completed_today: got %v, want 1", overview["completed_today"])
	}
	if overview["turnover_today"].(string) != "44.00" {
		t.Fatalf("overview turnover_today: got %s, want 44.00", overview["turnover_today"].(string))
	}

	t.Logf("Integration test passed: container=%s, admin=%s, customer=%s, dish=%s, order=%s",
		pgContainer.GetContainerID(), adminID, customerID, dishID, orderID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("feastly_test"),
		tcpostgres.WithUsername("feastly"),
		tcpostgres.WithPassword("feastly"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	// Connect with stdlib for migrate
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory. Go test sets cwd
	// to the package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, email, fullName, role string) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (full_name, email, hashed_password, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		fullName, email, string(hashedPassword), role,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return id
}

func createDish(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name, price string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO dishes (name, price, status)
		 VALUES ($1, $2, 'ON_SALE')
		 RETURNING id`,
		name, price,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create dish: %v", err)
	}
	return id
}

func createAddress(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO addresses (user_id, consignee, phone, detail, is_default)
		 VALUES ($1, $2, $3, $4, true)
		 RETURNING id`,
		userID, "Test Diner", "555-0101", "1 Harbor Road",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create address: %v", err)
	}
	return id
}

// --- API call helpers ---

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	body := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	resp := httpPostJSON(t, server, "/auth/login", body, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

func addCartItem(t *testing.T, server *httptest.Server, dishID uuid.UUID, token string) {
	t.Helper()
	httpPostJSON(t, server, "/cart/items", map[string]interface{}{
		"dish_id": dishID.String(),
	}, token)
}

func transitionOrder(t *testing.T, server *httptest.Server, orderID uuid.UUID, action, token string) {
	t.Helper()
	body := map[string]interface{}{}
	httpDoJSON(t, server, "PUT", fmt.Sprintf("/admin/orders/%s/%s", orderID, action), body, token)
}

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	return httpDoJSON(t, server, "POST", path, body, token)
}

func httpDoJSON(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequest(method, server.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d, body: %v", method, path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}
