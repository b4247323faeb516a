// Command ledgerctl administers a consequence ledger database from the shell:
// importing profiles from TOML, inspecting a day's panel, toggling penalties
// and dumping the transaction log. It shares CONSEQUENCE_* configuration
// with the server and can run next to it; the server's watcher picks up
// writes made here.
package main

import (
	"os"
	_ "time/tzdata"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
