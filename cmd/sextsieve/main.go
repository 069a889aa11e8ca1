// Command sextsieve runs the prime-sextuplet sieve and verification engine
// against a configured block source, submitting found candidates back over
// JSON-RPC.
package main

import (
	"github.com/rieriver/sextsieve/cmd/sextsieve/commands"
)

func main() {
	commands.Execute()
}
