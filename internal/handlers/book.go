package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/nvelichkov/bookshelf/internal/metrics"
	"github.com/nvelichkov/bookshelf/internal/middleware"
	"github.com/nvelichkov/bookshelf/internal/models"
	"github.com/nvelichkov/bookshelf/internal/repo"
)

// DefaultRecommendLimit is the number of books returned by the recommendation
// endpoint when the client does not ask for a specific limit.
const DefaultRecommendLimit = 2

type BookHandler struct {
	Books *repo.BookRepo
}

// bookInput is the payload for create and update. Both operations validate the
// full schema. Favorite is optional: create treats an omitted flag as false,
// update keeps the stored flag.
type bookInput struct {
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author" validate:"required"`
	ISBN          string `json:"isbn" validate:"required"`
	PublishedYear int    `json:"publishedYear" validate:"required,gte=1000"`
	Favorite      *bool  `json:"favorite"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names, not Go struct field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateBookInput returns a message naming the first failing field, or "".
// The publishedYear upper bound moves with the calendar, so it is checked
// against time.Now rather than a static tag.
func validateBookInput(in bookInput) string {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("%q is required", fe.Field())
			case "gte":
				return fmt.Sprintf("%q must be greater than or equal to %s", fe.Field(), fe.Param())
			}
			return fmt.Sprintf("%q is invalid", fe.Field())
		}
		return "invalid payload"
	}
	if year := time.Now().Year(); in.PublishedYear > year {
		return fmt.Sprintf("%q must be less than or equal to %d", "publishedYear", year)
	}
	return ""
}

// bookID parses an id taken from a URL param or a body field. Store-assigned
// ids are positive integers; anything else is rejected before the store is hit.
func bookID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id format")
	}
	return id, nil
}

//
// ==========================
// List All Books (admin)
// ==========================
//

func (h *BookHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	books, err := h.Books.ListAll(r.Context())
	if err != nil {
		slog.Error("list all books failed", "error", err)
		JSONError(w, "failed to fetch books", http.StatusInternalServerError)
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	writeJSON(w, books, http.StatusOK)
}

//
// ==========================
// List Own Books (optional ?favorite=true filter)
// ==========================
//

func (h *BookHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	favoriteOnly := r.URL.Query().Get("favorite") == "true"

	books, err := h.Books.ListByOwner(r.Context(), userID, favoriteOnly)
	if err != nil {
		slog.Error("list books failed", "error", err, "user_id", userID)
		JSONError(w, "failed to fetch books", http.StatusInternalServerError)
		return
	}
	// Owning no matching books is an empty collection, not an error.
	if books == nil {
		books = []models.Book{}
	}
	writeJSON(w, books, http.StatusOK)
}

//
// ==========================
// Create Book
// ==========================
//

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input bookInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if msg := validateBookInput(input); msg != "" {
		JSONError(w, msg, http.StatusBadRequest)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())

	// ISBN uniqueness is global, not per owner. The pre-check gives the
	// friendly error; a concurrent create is caught by the unique index.
	exists, err := h.Books.ExistsISBN(r.Context(), input.ISBN)
	if err != nil {
		slog.Error("create book: isbn check failed", "error", err)
		JSONError(w, "failed to save book", http.StatusInternalServerError)
		return
	}
	if exists {
		JSONError(w, "book with this ISBN already exists", http.StatusBadRequest)
		return
	}

	favorite := input.Favorite != nil && *input.Favorite

	book, err := h.Books.Create(r.Context(), userID, input.Title, input.Author, input.ISBN, input.PublishedYear, favorite)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			JSONError(w, "book with this ISBN already exists", http.StatusBadRequest)
			return
		}
		slog.Error("create book failed", "error", err, "user_id", userID)
		JSONError(w, "failed to save book", http.StatusInternalServerError)
		return
	}

	metrics.IncBooksCreated()
	writeJSON(w, book, http.StatusCreated)
}

//
// ==========================
// Mark Favorite (owner-only; id comes in the body)
// ==========================
//

func (h *BookHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ID json.Number `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	id, err := bookID(input.ID.String())
	if err != nil {
		JSONError(w, "invalid ID format", http.StatusBadRequest)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())

	book, err := h.Books.MarkFavorite(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Someone else's book and a nonexistent book look identical here.
			JSONError(w, "book not found or access denied", http.StatusNotFound)
			return
		}
		slog.Error("mark favorite failed", "error", err, "book_id", id, "user_id", userID)
		JSONError(w, "failed to mark book as favorite", http.StatusInternalServerError)
		return
	}

	writeJSON(w, book, http.StatusOK)
}

//
// ==========================
// Update Book (owner-only, payload re-validated; omitted favorite kept)
// ==========================
//

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid ID format", http.StatusBadRequest)
		return
	}

	var input bookInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if msg := validateBookInput(input); msg != "" {
		JSONError(w, msg, http.StatusBadRequest)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())

	current, err := h.Books.GetOwned(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			JSONError(w, "book not found or access denied", http.StatusNotFound)
			return
		}
		slog.Error("update book: lookup failed", "error", err, "book_id", id, "user_id", userID)
		JSONError(w, "failed to update book", http.StatusInternalServerError)
		return
	}

	// Merge: an omitted favorite flag keeps the stored value.
	favorite := current.Favorite
	if input.Favorite != nil {
		favorite = *input.Favorite
	}

	book, err := h.Books.UpdateOwned(r.Context(), id, userID, input.Title, input.Author, input.ISBN, input.PublishedYear, favorite)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			JSONError(w, "book not found or access denied", http.StatusNotFound)
			return
		}
		if errors.Is(err, repo.ErrDuplicate) {
			JSONError(w, "book with this ISBN already exists", http.StatusBadRequest)
			return
		}
		slog.Error("update book failed", "error", err, "book_id", id, "user_id", userID)
		JSONError(w, "failed to update book", http.StatusInternalServerError)
		return
	}

	writeJSON(w, book, http.StatusOK)
}

//
// ==========================
// Delete Book (owner, or any book for admin)
// ==========================
//

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid ID format", http.StatusBadRequest)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	role, _ := middleware.GetRole(r.Context())

	if role == models.RoleAdmin {
		err = h.Books.Delete(r.Context(), id)
	} else {
		err = h.Books.DeleteOwned(r.Context(), id, userID)
	}
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			JSONError(w, "book not found or access denied", http.StatusNotFound)
			return
		}
		slog.Error("delete book failed", "error", err, "book_id", id, "user_id", userID)
		JSONError(w, "failed to delete book", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"message": "book deleted successfully"}, http.StatusOK)
}

//
// ==========================
// Recommendations
// ==========================
//

// Recommend samples up to ?limit books (default 2). Books sharing an author
// with one of the caller's favorites are preferred, excluding the caller's own
// books; otherwise a uniform sample of the whole store is returned. An empty
// store is a 404.
func (h *BookHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRecommendLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	userID, _ := middleware.GetUserID(r.Context())

	authors, err := h.Books.FavoriteAuthors(r.Context(), userID)
	if err != nil {
		slog.Error("recommend: favorite authors failed", "error", err, "user_id", userID)
		JSONError(w, "failed to fetch recommendations", http.StatusInternalServerError)
		return
	}

	var books []models.Book
	source := "fallback"
	if len(authors) > 0 {
		books, err = h.Books.SampleByAuthors(r.Context(), authors, userID, limit)
		if err != nil {
			slog.Error("recommend: author sample failed", "error", err, "user_id", userID)
			JSONError(w, "failed to fetch recommendations", http.StatusInternalServerError)
			return
		}
		source = "favorites"
	}

	if len(books) == 0 {
		books, err = h.Books.Sample(r.Context(), limit)
		if err != nil {
			slog.Error("recommend: fallback sample failed", "error", err, "user_id", userID)
			JSONError(w, "failed to fetch recommendations", http.StatusInternalServerError)
			return
		}
		source = "fallback"
	}

	if len(books) == 0 {
		JSONError(w, "no books available", http.StatusNotFound)
		return
	}

	metrics.IncRecommendations(source)
	writeJSON(w, books, http.StatusOK)
}
