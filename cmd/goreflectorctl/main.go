// Command goreflectorctl is the CLI client for the goreflector daemon:
// it speaks the admin protocol (§6) over plain TCP.
package main

import "github.com/dantte-lp/goreflector/cmd/goreflectorctl/commands"

func main() {
	commands.Execute()
}
