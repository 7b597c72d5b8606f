// Command docqa indexes PDF documents and answers questions about them.
// It provides a CLI (via Cobra) for ingestion and querying, and an HTTP
// server exposing the same operations as a JSON API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
