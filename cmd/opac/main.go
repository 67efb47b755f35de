// Command opac is a Dynix-style library catalog terminal. It searches a
// Calibre library, a PostgreSQL mirror of one or the Internet Archive, and
// can run the analytics stats service that aggregates patron searches.
//
// Usage:
//
//	opac run [--config opac.yaml]
//	opac console
//	opac compile title cats cradle
//	opac count --backend archive word gone wind
//	opac stats
package main

import (
	"fmt"
	"os"

	"github.com/eigenbahn/dynix/cmd/opac/cmd"
	apperrors "github.com/eigenbahn/dynix/pkg/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "opac: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}
