package main

import (
	_ "embed"

	"github.com/Presto-io/symfix/internal/cli"
)

//go:embed manifest.json
var manifestJSON string

//go:embed example.ts
var exampleTS string

func main() {
	cli.Run(manifestJSON, exampleTS)
}
