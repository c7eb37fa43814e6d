// Package main provides dokushoctl, an operator CLI for the Dokusho admin API.
//
// Usage:
//
//	dokushoctl queues
//	dokushoctl import https://mangadex.org/title/<uuid>
//	DOKUSHO_URL=http://backend:8080 dokushoctl sync-sources
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
