// ====================================
// File: cmd/bettingpool/main.go
// ====================================
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rovshanmuradov/bettingpool/internal/cli"
)

func main() {
	root := cli.NewRootCommand(os.Stdout, cli.NewRPCClient)
	if err := root.Execute(); err != nil {
		// failed results are already printed as JSON
		if !errors.Is(err, cli.ErrFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
