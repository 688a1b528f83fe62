// Command lulu runs the Lulu AI image studio.
package main

import (
	"os"

	"lulu_studio/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
