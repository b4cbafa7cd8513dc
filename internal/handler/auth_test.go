package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/feastly-app/api/internal/auth"
	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/enum"
	"github.com/feastly-app/api/internal/handler"
)

type mockAuthStore struct {
	users map[uuid.UUID]database.User
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return database.User{}, pgx.ErrNoRows
}

func newTestUser(t *testing.T, email, password, role string) database.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return database.User{
		ID:             uuid.New(),
		FullName:       "Test User",
		Email:          email,
		HashedPassword: string(hashed),
		Role:           role,
	}
}

func setupAuthRouter(store handler.AuthStore) chi.Router {
	r := chi.NewRouter()
	handler.NewAuthHandler(store, testJWTSecret).RegisterRoutes(r)
	return r
}

func TestLogin_Success(t *testing.T) {
	user := newTestUser(t, "jane@example.com", "opensesame", enum.UserRoleCustomer)
	router := setupAuthRouter(&mockAuthStore{users: map[uuid.UUID]database.User{user.ID: user}})

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "jane@example.com",
		"password": "opensesame",
	}, "")

	wantStatus(t, rr, http.StatusOK)
	resp := decodeJSON(t, rr)
	if resp["access_token"] == "" || resp["refresh_token"] == "" {
		t.Fatal("expected both tokens in response")
	}
	u, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected user object, got %v", resp["user"])
	}
	if u["email"] != "jane@example.com" {
		t.Errorf("user email: got %v, want jane@example.com", u["email"])
	}
	if u["role"] != enum.UserRoleCustomer {
		t.Errorf("user role: got %v, want %s", u["role"], enum.UserRoleCustomer)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	user := newTestUser(t, "jane@example.com", "opensesame", enum.UserRoleCustomer)
	router := setupAuthRouter(&mockAuthStore{users: map[uuid.UUID]database.User{user.ID: user}})

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "jane@example.com",
		"password": "wrong",
	}, "")

	wantStatus(t, rr, http.StatusUnauthorized)
}

func TestLogin_UnknownEmail(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{users: map[uuid.UUID]database.User{}})

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	}, "")

	// Same answer as a wrong password, so callers cannot probe for accounts.
	wantStatus(t, rr, http.StatusUnauthorized)
}

func TestLogin_MissingFields(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{users: map[uuid.UUID]database.User{}})

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{"email": "jane@example.com"}, "")

	wantStatus(t, rr, http.StatusBadRequest)
}

func TestRefresh_Success(t *testing.T) {
	user := newTestUser(t, "jane@example.com", "opensesame", enum.UserRoleCustomer)
	router := setupAuthRouter(&mockAuthStore{users: map[uuid.UUID]database.User{user.ID: user}})

	refreshToken, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	}, "")

	wantStatus(t, rr, http.StatusOK)
	resp := decodeJSON(t, rr)
	if resp["access_token"] == "" {
		t.Fatal("expected a fresh access token")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{users: map[uuid.UUID]database.User{}})

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": "not-a-token",
	}, "")

	wantStatus(t, rr, http.StatusUnauthorized)
}

func TestRefresh_DeletedUser(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{users: map[uuid.UUID]database.User{}})

	refreshToken, err := auth.GenerateRefreshToken(testJWTSecret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	}, "")

	wantStatus(t, rr, http.StatusUnauthorized)
}
