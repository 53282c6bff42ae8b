package main

import "github.com/dkeye/rendezvous/internal/cli"

func main() {
	cli.Execute()
}
