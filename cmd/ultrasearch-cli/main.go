// Command ultrasearch-cli is the client named in spec §2's "Client (UI
// or CLI) — connects to the service IPC endpoint to issue queries and
// retrieve status."
package main

import (
	"ultrasearch/cmd/ultrasearch-cli/cmd"
)

func main() {
	cmd.Execute()
}
