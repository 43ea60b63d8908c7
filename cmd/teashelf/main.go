// Command teashelf manages a personal tea inventory.
package main

import (
	"os"

	"github.com/mesh-intelligence/teashelf/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
