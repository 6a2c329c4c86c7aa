package main

import (
	"fmt"
	"os"

	"github.com/hma-data/mba-ingest/cmd/mba-ingest/commands"
)

func main() {
	err := commands.Execute()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
