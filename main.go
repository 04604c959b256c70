package main

import (
	"fmt"
	"os"

	"github.com/schmich/runx/cmd"
	"github.com/schmich/runx/pkg/bootstrap"
)

func main() {
	if err := bootstrap.RestoreEnvironment(); err != nil {
		fmt.Fprintf(os.Stderr, "[runx] error: %s\n", err)
		os.Exit(1)
	}

	os.Exit(cmd.Execute())
}
