package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/eigenbahn/dynix/pkg/errors"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <backend>",
	Short: "Drop the cached results of a backend",
	Long:  "Drop every cached count and listing of a backend, for example after the Calibre library was updated.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		lib, err := openLibrary(cmd.Context(), cfg, libraryOptions{only: name})
		if err != nil {
			return err
		}
		defer lib.Close()

		c, ok := lib.caches[name]
		if !ok {
			return apperrors.Newf(apperrors.ErrUnavailable, apperrors.ExitUnavailable,
				"backend %s has no result cache (is redis enabled?)", name)
		}
		if err := c.Invalidate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cache of %s invalidated\n", name)
		return nil
	},
}
