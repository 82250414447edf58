package main

import (
	"permgen/cmd/permgen/commands"
	"permgen/lib/util/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
