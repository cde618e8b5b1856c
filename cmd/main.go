package main

import (
	"os"

	"github.com/soundprediction/go-librarian/cmd/librarian"
)

func main() {
	if err := librarian.Execute(); err != nil {
		os.Exit(1)
	}
}
