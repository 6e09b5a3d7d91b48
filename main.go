// The main package for the gutenberg-pipeline executable.
package main

import (
	"github.com/gutenlab/gutenberg-pipeline/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
