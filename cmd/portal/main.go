package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sandeepkv93/learning-portal-client/internal/tools/portal"
)

func main() {
	if err := portal.NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, portal.ErrFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
