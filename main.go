// The main package for the webscan executable.
package main

import (
	"github.com/pcameron/webscan/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
