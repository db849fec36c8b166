// Package main provides the tails binary with the bundled demo application.
package main

import (
	"github.com/opencode-ai/tails/internal/demoapp"
	"github.com/opencode-ai/tails/pkg/tails"
)

func main() {
	tails.Main(demoapp.New())
}
