package books

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/nvelichkov/bookshelf/cmd/cli/config"
	"github.com/nvelichkov/bookshelf/cmd/cli/output"
	"github.com/spf13/cobra"
)

type book struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	PublishedYear int    `json:"publishedYear"`
	Favorite      bool   `json:"favorite"`
	OwnerID       int    `json:"ownerUserId"`
}

// ==========================
// Init Books
// ==========================
func InitBooks(rootCmd *cobra.Command) {

	booksCmd := &cobra.Command{
		Use:   "books",
		Short: "Manage books",
	}

	booksCmd.AddCommand(
		listBooksCmd(),
		addBookCmd(),
		updateBookCmd(),
		deleteBookCmd(),
		favoriteBookCmd(),
		recommendCmd(),
	)

	rootCmd.AddCommand(booksCmd)
}

// ==========================
// LIST
// ==========================
func listBooksCmd() *cobra.Command {
	var favorites bool
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your books (--all for every book, admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/books"
			if all {
				path = "/books/all"
			} else if favorites {
				path = "/books?favorite=true"
			}

			var books []book
			if err := doJSON("GET", path, nil, &books); err != nil {
				return err
			}
			renderBooks(books)
			return nil
		},
	}

	cmd.Flags().BoolVar(&favorites, "favorites", false, "only favorite books")
	cmd.Flags().BoolVar(&all, "all", false, "every book in the store (admin)")

	return cmd
}

// ==========================
// ADD
// ==========================
func addBookCmd() *cobra.Command {
	var title, author, isbn string
	var year int
	var favorite bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"title":         title,
				"author":        author,
				"isbn":          isbn,
				"publishedYear": year,
				"favorite":      favorite,
			}

			var created book
			if err := doJSON("POST", "/books", payload, &created); err != nil {
				return err
			}
			fmt.Printf("Created book %d: %s by %s\n", created.ID, created.Title, created.Author)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringVar(&author, "author", "", "book author")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	cmd.Flags().IntVar(&year, "year", 0, "published year")
	cmd.Flags().BoolVar(&favorite, "favorite", false, "mark as favorite")

	return cmd
}

// ==========================
// UPDATE
// ==========================
func updateBookCmd() *cobra.Command {
	var title, author, isbn string
	var year int
	var favorite bool

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update a book you own (full payload)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"title":         title,
				"author":        author,
				"isbn":          isbn,
				"publishedYear": year,
				"favorite":      favorite,
			}

			var updated book
			if err := doJSON("PUT", "/books/"+args[0], payload, &updated); err != nil {
				return err
			}
			fmt.Printf("Updated book %d\n", updated.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringVar(&author, "author", "", "book author")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	cmd.Flags().IntVar(&year, "year", 0, "published year")
	cmd.Flags().BoolVar(&favorite, "favorite", false, "mark as favorite")

	return cmd
}

// ==========================
// DELETE
// ==========================
func deleteBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := doJSON("DELETE", "/books/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Println("Book deleted.")
			return nil
		},
	}
}

// ==========================
// FAVORITE
// ==========================
func favoriteBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite [id]",
		Short: "Mark a book you own as favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid book id: %s", args[0])
			}

			var updated book
			if err := doJSON("POST", "/books/favorite", map[string]int{"id": id}, &updated); err != nil {
				return err
			}
			fmt.Printf("Book %q marked as favorite.\n", updated.Title)
			return nil
		},
	}
}

// ==========================
// RECOMMEND
// ==========================
func recommendCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Get book recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/books/recommendations"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}

			var books []book
			if err := doJSON("GET", path, nil, &books); err != nil {
				return err
			}
			renderBooks(books)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of recommendations (default 2)")

	return cmd
}

func renderBooks(books []book) {
	rows := make([][]interface{}, 0, len(books))
	for _, b := range books {
		rows = append(rows, []interface{}{b.ID, b.Title, b.Author, b.ISBN, b.PublishedYear, b.Favorite})
	}
	output.RenderTable([]string{"ID", "Title", "Author", "ISBN", "Year", "Favorite"}, rows)
}

// doJSON performs an authenticated request against the API and decodes the response into out.
func doJSON(method, path string, payload interface{}, out interface{}) error {
	token, err := config.LoadToken()
	if err != nil {
		return fmt.Errorf("please login first (shelf login)")
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, config.APIURL()+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("API: %s", errResp.Error)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return err
		}
	}
	return nil
}
