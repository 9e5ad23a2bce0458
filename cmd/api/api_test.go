package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nvelichkov/bookshelf/internal/config"
	"github.com/nvelichkov/bookshelf/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var bookRows = []string{"id", "title", "author", "isbn", "published_year", "favorite", "owner_id", "created_at", "updated_at"}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "test-secret",
		JWTExpireHours: 1,
	}
}

func newTestServer(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newRouter(db, testConfig()), mock
}

func issueToken(t *testing.T, userID int, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAPI_Health(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPI_Ready(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPI_SignupLoginAndShelf(t *testing.T) {
	router, mock := newTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	now := time.Now()

	// signup: email free, insert succeeds
	mock.ExpectQuery(`SELECT id, username, email, password_hash, role, created_at`).
		WithArgs("alice@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@example.com", sqlmock.AnyArg(), "user").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "role", "created_at"}).
			AddRow(7, "alice", "alice@example.com", "user", now))

	// login
	mock.ExpectQuery(`SELECT id, username, email, password_hash, role, created_at`).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "created_at"}).
			AddRow(7, "alice", "alice@example.com", string(hash), "user", now))

	// create book
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("9780441013593").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO books`).
		WithArgs("Dune", "Frank Herbert", "9780441013593", 1965, false, 7).
		WillReturnRows(sqlmock.NewRows(bookRows).
			AddRow(1, "Dune", "Frank Herbert", "9780441013593", 1965, false, 7, now, now))

	// list own books
	mock.ExpectQuery(`FROM books WHERE owner_id = \$1 ORDER BY id`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(bookRows).
			AddRow(1, "Dune", "Frank Herbert", "9780441013593", 1965, false, 7, now, now))

	// signup
	body := `{"username":"alice","email":"alice@example.com","password":"s3cret"}`
	req := httptest.NewRequest("POST", "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status: got %d (body %s)", rec.Code, rec.Body.String())
	}

	// login
	req = httptest.NewRequest("POST", "/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"s3cret"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status: got %d (body %s)", rec.Code, rec.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	if loginResp.Token == "" {
		t.Fatal("login returned no token")
	}

	// create a book with the issued token
	bookBody := `{"title":"Dune","author":"Frank Herbert","isbn":"9780441013593","publishedYear":1965}`
	req = httptest.NewRequest("POST", "/books", strings.NewReader(bookBody))
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create book status: got %d (body %s)", rec.Code, rec.Body.String())
	}

	// list the shelf
	req = httptest.NewRequest("GET", "/books", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list books status: got %d (body %s)", rec.Code, rec.Body.String())
	}
	var books []models.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &books); err != nil {
		t.Fatalf("decode list body: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Dune" {
		t.Errorf("unexpected shelf: %+v", books)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_BooksRequireToken(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/books", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAPI_ListAllRequiresAdmin(t *testing.T) {
	router, mock := newTestServer(t)

	// user token is rejected before the store is hit
	req := httptest.NewRequest("GET", "/books/all", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, 7, "user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user status: got %d, want 403", rec.Code)
	}

	// admin token passes through
	now := time.Now()
	mock.ExpectQuery(`FROM books ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(bookRows).
			AddRow(1, "Dune", "Frank Herbert", "9780441013593", 1965, false, 7, now, now))

	req = httptest.NewRequest("GET", "/books/all", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, 1, "admin"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status: got %d (body %s)", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_AdminCannotUseUserShelfRoutes(t *testing.T) {
	router, _ := newTestServer(t)

	// The user shelf routes are scoped to the user role; an admin token gets
	// 403, not someone else's data.
	req := httptest.NewRequest("GET", "/books", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, 1, "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", rec.Code)
	}
}
