// Command manage runs administrative tasks against the configured database:
//
//	manage migrate [up|down|status]
//	manage questions import questions.json
//	manage users promote admin@example.com
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}
