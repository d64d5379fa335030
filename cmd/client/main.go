package main

import (
	"os"

	"github.com/yeet-socket/yeet/cmd/client/command"
)

func main() {
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
