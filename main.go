// The main package for the appearances-scraper executable.
package main

import (
	"github.com/JakeFAU/appearances-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
