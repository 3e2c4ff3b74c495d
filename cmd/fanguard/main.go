// fanguard gates privileged fan-speed writes behind a safety policy engine.
package main

import "github.com/ppiankov/fanguard/internal/cli"

func main() {
	cli.Execute()
}
