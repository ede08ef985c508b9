package main

import (
	"os"

	exportcmd "banking/cmd/export"
	"banking/cmd/root"
	"banking/cmd/serve"
	"banking/cmd/update"
)

func main() {
	root.Cmd.AddCommand(update.Cmd, serve.Cmd, exportcmd.Cmd)
	if err := root.Cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
