package main

import (
	"os"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
