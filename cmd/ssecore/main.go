// Package main is the single-binary entrypoint for the core.
package main

import "github.com/sonata-sse/sse-core/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
