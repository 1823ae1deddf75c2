package main

import "github.com/agentic-research/tangle/cmd"

func main() {
	cmd.Execute()
}
