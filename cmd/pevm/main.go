package main

import (
	"fmt"
	"os"

	"github.com/erigontech/pevm/cmd/pevm/commands"
	"github.com/erigontech/pevm/common"
)

func main() {
	ctx, cancel := common.RootContext()
	defer cancel()

	if err := commands.RootCommand().ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
