package main

import (
	"fmt"
	"os"

	"github.com/smallbiznis/petfeeder/internal/cli"
)

func main() {
	printed, err := cli.Execute(os.Args[1:], os.Stdin, os.Stdout)
	if err == nil {
		return
	}
	if !printed {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
