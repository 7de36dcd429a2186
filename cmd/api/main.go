// Package main provides the main entry point for the NutriSense API server
package main

import (
	"os"

	"github.com/nutrisense/api/internal/infrastructure/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
