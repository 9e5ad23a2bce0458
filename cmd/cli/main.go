package main

import (
	"fmt"
	"os"

	"github.com/nvelichkov/bookshelf/cmd/cli/auth"
	"github.com/nvelichkov/bookshelf/cmd/cli/books"
	"github.com/nvelichkov/bookshelf/cmd/cli/root"
)

func main() {
	auth.InitAuth(root.RootCmd)
	books.InitBooks(root.RootCmd)

	if err := root.RootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
