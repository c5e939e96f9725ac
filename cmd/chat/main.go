package main

import (
	"os"

	"github.com/petasbytes/budgetchat/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
