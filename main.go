// The main package for the unfurl executable.
package main

import (
	"github.com/irclight/unfurl/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
