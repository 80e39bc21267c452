// The main package for the moviecrawler executable.
package main

import (
	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/cmd"
)

func main() {
	cmd.Execute()
}
