package main

import (
	"fmt"
	"os"

	"github.com/dainotech/beespace-demo/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(cli.DefaultApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
