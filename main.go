package main

import (
	"fmt"
	"os"

	"github.com/nicholasgasior/snapprof/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// An empty message means the command already reported the failure,
		// as JSON on stdout or as per-step lines on stderr.
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(1)
	}
}
