package main

import (
	"context"
	"fmt"
	"os"

	"github.com/zhouzirui/tuft-client/internal/service/format"
)

func main() {
	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, format.Error(err))
		os.Exit(1)
	}
}
