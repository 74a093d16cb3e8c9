// The main package for the carharvest executable.
package main

import (
	"github.com/marketharvest/carharvest/cmd"
)

func main() {
	cmd.Execute()
}
