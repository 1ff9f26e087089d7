// ./main.go
package main

import (
	"github.com/xkilldash9x/formpilot/cmd"
)

func main() {
	// Execute handles command-line parsing, configuration, signal
	// wiring, and execution.
	cmd.Execute()
}
