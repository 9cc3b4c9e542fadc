package main

import (
	"os"

	"github.com/mensylisir/xmupgrade/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
