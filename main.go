// Package main is the entry point for the seriesd application
package main

import (
	"github.com/dotalive/seriesd/cmd"
)

func main() {
	cmd.Execute()
}
