package main

import (
	"fmt"
	"os"

	"github.com/HenryGill4/OpCentrix-sub006/internal/cli"
)

func main() {
	if err := cli.BuildCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "schedctl: %v\n", err)
		os.Exit(1)
	}
}
