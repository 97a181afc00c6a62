package main

import (
	"os"

	"github.com/rerankd/rerankd/cmd/rerankd"
)

func main() {
	if err := rerankd.Execute(); err != nil {
		os.Exit(1)
	}
}
