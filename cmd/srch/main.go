// Package main provides the entry point for the srch CLI.
package main

import (
	"os"

	"github.com/rpopa-dp/srch/cmd/srch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
