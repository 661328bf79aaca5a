package main

import (
	"fmt"
	"os"

	"github.com/syaghoubi00/pinup/cmd/pinup/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pinup:", err)
		os.Exit(1)
	}
}
