// Command threadpost publishes scheduled content items, threading replies
// under their parent posts.
package main

import (
	"context"
	"os"

	"github.com/roach88/threadpost/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
