// Package main is the single-binary entrypoint for taskbay.
package main

import "github.com/taskbay/taskbay/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
