package main

import (
	"os"

	"memories/service"
)

var exit = os.Exit

func main() {
	exit(service.HandleCommand(os.Args[1:]))
}
