package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

var bookRows = []string{"id", "title", "author", "isbn", "published_year", "favorite", "owner_id", "created_at", "updated_at"}

func TestBookRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO books \(title, author, isbn, published_year, favorite, owner_id\)`).
		WithArgs("Dune", "Frank Herbert", "9780441013593", 1965, false, 7).
		WillReturnRows(sqlmock.NewRows(bookRows).
			AddRow(1, "Dune", "Frank Herbert", "9780441013593", 1965, false, 7, now, now))

	repo := NewBookRepo(db)
	book, err := repo.Create(context.Background(), 7, "Dune", "Frank Herbert", "9780441013593", 1965, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if book.ID != 1 || book.OwnerID != 7 || book.Title != "Dune" {
		t.Errorf("unexpected book: %+v", book)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestBookRepo_Create_DuplicateISBN(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO books`).
		WithArgs("Dune", "Frank Herbert", "9780441013593", 1965, false, 7).
		WillReturnError(&pq.Error{Code: "23505"})

	repo := NewBookRepo(db)
	_, err = repo.Create(context.Background(), 7, "Dune", "Frank Herbert", "9780441013593", 1965, false)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Create: got %v, want ErrDuplicate", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestBookRepo_ExistsISBN(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("9780441013593").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewBookRepo(db)
	exists, err := repo.ExistsISBN(context.Background(), "9780441013593")
	if err != nil {
		t.Fatalf("ExistsISBN: %v", err)
	}
	if !exists {
		t.Error("ExistsISBN: got false, want true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestBookRepo_ListByOwner_FavoriteFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM books WHERE owner_id = \$1 AND favorite ORDER BY id`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(bookRows).
			AddRow(2, "Hyperion", "Dan Simmons", "9780553283686", 1989, true, 7, now, now))

	repo := NewBookRepo(db)
	books, err := repo.ListByOwner(context.Background(), 7, true)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(books) != 1 || !books[0].Favorite {
		t.Errorf("unexpected books: %+v", books)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestBookRepo_GetOwned_NotOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	// Book 3 exists but belongs to someone else; the scoped lookup must not
	// reveal that.
	mock.ExpectQuery(`FROM books WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(3, 7).
		WillReturnRows(sqlmock.NewRows(bookRows))

	repo := NewBookRepo(db)
	_, err = repo.GetOwned(context.Background(), 3, 7)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOwned: got %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestBookRepo_MarkFavorite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`UPDATE books`).
		WithArgs(2, 7).
		WillReturnRows(sqlmock.NewRows(bookRows).
			AddRow(2, "Hyperion", "Dan Simmons", "9780553283686", 1989, true, 7, now, now))

	repo := NewBookRepo(db)
	book, err := repo.MarkFavorite(context.Background(), 2, 7)
	if err != nil {
		t.Fatalf("MarkFavorite: %v", err)
	}
	if !book.Favorite {
		t.Errorf("MarkFavorite: favorite not set: %+v", book)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestBookRepo_DeleteOwned_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM books WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(42, 7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewBookRepo(db)
	err = repo.DeleteOwned(context.Background(), 42, 7)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteOwned: got %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestBookRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM books WHERE id = \$1$`).
		WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewBookRepo(db)
	if err := repo.Delete(context.Background(), 42); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestBookRepo_FavoriteAuthors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT DISTINCT author FROM books`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"author"}).
			AddRow("Dan Simmons").
			AddRow("Frank Herbert"))

	repo := NewBookRepo(db)
	authors, err := repo.FavoriteAuthors(context.Background(), 7)
	if err != nil {
		t.Fatalf("FavoriteAuthors: %v", err)
	}
	if len(authors) != 2 || authors[0] != "Dan Simmons" {
		t.Errorf("unexpected authors: %v", authors)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestBookRepo_SampleByAuthors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`WHERE author = ANY\(\$1\) AND owner_id <> \$2`).
		WithArgs(pq.Array([]string{"Dan Simmons"}), 7, 2).
		WillReturnRows(sqlmock.NewRows(bookRows).
			AddRow(9, "Ilium", "Dan Simmons", "9780380978939", 2003, false, 3, now, now))

	repo := NewBookRepo(db)
	books, err := repo.SampleByAuthors(context.Background(), []string{"Dan Simmons"}, 7, 2)
	if err != nil {
		t.Fatalf("SampleByAuthors: %v", err)
	}
	if len(books) != 1 || books[0].OwnerID == 7 {
		t.Errorf("unexpected books: %+v", books)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
