// drover is the CLI for coordinating agent fleets through a durable
// file mailbox.
package main

import (
	"os"

	"github.com/drovertools/drover/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
