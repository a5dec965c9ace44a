package main

import (
	"os"

	"github.com/ZanzyTHEbar/virtual-discfs/cmd/vdfs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
