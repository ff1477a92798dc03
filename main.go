// Command aicomp tracks the AI composition of an organization's code.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/roy-sema/cto-tool-sub001/cmd"
)

func main() {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	err := cmd.Execute()
	if perr := cmd.StopProfiling(); perr != nil {
		_, _ = fmt.Fprintln(os.Stderr, "⚠️ ", perr)
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
