// The main package for the spider executable.
package main

import "github.com/JakeFAU/asyncspider/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
