package main

import (
	"fmt"
	"os"

	"tipjar/cmd"
)

// Version should be set during build
var Version = "dev"

func main() {
	if err := cmd.Execute(Version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
