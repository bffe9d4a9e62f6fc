// The main package for the pulse executable.
package main

import (
	"github.com/jmcadams/pulse/cmd"
)

func main() {
	cmd.Execute()
}
