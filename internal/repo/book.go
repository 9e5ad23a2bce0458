package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/nvelichkov/bookshelf/internal/models"
)

const bookColumns = "id, title, author, isbn, published_year, favorite, owner_id, created_at, updated_at"

// ========================
// REPOSITORY STRUCT
// ========================

type BookRepo struct {
	DB *sql.DB
}

func NewBookRepo(db *sql.DB) *BookRepo {
	return &BookRepo{DB: db}
}

func scanBook(row interface{ Scan(...any) error }) (models.Book, error) {
	var b models.Book
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.ISBN,
		&b.PublishedYear,
		&b.Favorite,
		&b.OwnerID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func (r *BookRepo) queryBooks(ctx context.Context, query string, args ...any) ([]models.Book, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// ========================
// CREATE BOOK
// ========================

// Create inserts a book owned by ownerID. Returns ErrDuplicate on an ISBN
// collision; the unique index is the only hard guard against a concurrent
// create racing the handler's pre-check.
func (r *BookRepo) Create(ctx context.Context, ownerID int, title, author, isbn string, publishedYear int, favorite bool) (models.Book, error) {
	book, err := scanBook(r.DB.QueryRowContext(ctx,
		`INSERT INTO books (title, author, isbn, published_year, favorite, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+bookColumns,
		title, author, isbn, publishedYear, favorite, ownerID,
	))
	if isUniqueViolation(err) {
		return models.Book{}, ErrDuplicate
	}
	return book, err
}

// ========================
// EXISTS BY ISBN
// ========================

func (r *BookRepo) ExistsISBN(ctx context.Context, isbn string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM books WHERE isbn = $1)`, isbn,
	).Scan(&exists)
	return exists, err
}

// ========================
// LIST ALL BOOKS (admin)
// ========================

func (r *BookRepo) ListAll(ctx context.Context) ([]models.Book, error) {
	return r.queryBooks(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
}

// ========================
// LIST BOOKS BY OWNER
// ========================

func (r *BookRepo) ListByOwner(ctx context.Context, ownerID int, favoriteOnly bool) ([]models.Book, error) {
	if favoriteOnly {
		return r.queryBooks(ctx,
			`SELECT `+bookColumns+` FROM books WHERE owner_id = $1 AND favorite ORDER BY id`, ownerID)
	}
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE owner_id = $1 ORDER BY id`, ownerID)
}

// ========================
// GET OWNED BOOK BY ID
// ========================

// GetOwned is the shared load-owned-or-404 lookup: a book that exists but
// belongs to someone else is reported exactly like a missing one.
func (r *BookRepo) GetOwned(ctx context.Context, id, ownerID int) (models.Book, error) {
	book, err := scanBook(r.DB.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Book{}, ErrNotFound
	}
	return book, err
}

// ========================
// MARK FAVORITE
// ========================

func (r *BookRepo) MarkFavorite(ctx context.Context, id, ownerID int) (models.Book, error) {
	book, err := scanBook(r.DB.QueryRowContext(ctx,
		`UPDATE books
		 SET favorite = TRUE, updated_at = now()
		 WHERE id = $1 AND owner_id = $2
		 RETURNING `+bookColumns,
		id, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Book{}, ErrNotFound
	}
	return book, err
}

// ========================
// UPDATE OWNED BOOK
// ========================

func (r *BookRepo) UpdateOwned(ctx context.Context, id, ownerID int, title, author, isbn string, publishedYear int, favorite bool) (models.Book, error) {
	book, err := scanBook(r.DB.QueryRowContext(ctx,
		`UPDATE books
		 SET title = $1, author = $2, isbn = $3, published_year = $4, favorite = $5, updated_at = now()
		 WHERE id = $6 AND owner_id = $7
		 RETURNING `+bookColumns,
		title, author, isbn, publishedYear, favorite, id, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Book{}, ErrNotFound
	}
	if isUniqueViolation(err) {
		return models.Book{}, ErrDuplicate
	}
	return book, err
}

// ========================
// DELETE BOOK
// ========================

// Delete removes a book by id regardless of owner (admin path).
func (r *BookRepo) Delete(ctx context.Context, id int) error {
	return r.deleteWhere(ctx, `DELETE FROM books WHERE id = $1`, id)
}

// DeleteOwned removes a book only when it belongs to ownerID.
func (r *BookRepo) DeleteOwned(ctx context.Context, id, ownerID int) error {
	return r.deleteWhere(ctx, `DELETE FROM books WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

func (r *BookRepo) deleteWhere(ctx context.Context, query string, args ...any) error {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ========================
// RECOMMENDATION SAMPLING
// ========================

// FavoriteAuthors returns the distinct authors of ownerID's favorite books.
func (r *BookRepo) FavoriteAuthors(ctx context.Context, ownerID int) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT author FROM books WHERE owner_id = $1 AND favorite`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// SampleByAuthors returns up to limit random books by any of the given
// authors, excluding books owned by excludeOwner.
func (r *BookRepo) SampleByAuthors(ctx context.Context, authors []string, excludeOwner, limit int) ([]models.Book, error) {
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books
		 WHERE author = ANY($1) AND owner_id <> $2
		 ORDER BY RANDOM() LIMIT $3`,
		pq.Array(authors), excludeOwner, limit)
}

// Sample returns up to limit random books from the whole store.
func (r *BookRepo) Sample(ctx context.Context, limit int) ([]models.Book, error) {
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY RANDOM() LIMIT $1`, limit)
}
