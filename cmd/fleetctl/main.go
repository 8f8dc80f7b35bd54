package main

import (
	"github.com/acdtunes/fleetd/internal/adapters/cli"
)

func main() {
	cli.Execute()
}
