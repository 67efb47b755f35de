package cmd

import (
	"github.com/spf13/cobra"

	"github.com/eigenbahn/dynix/internal/console"
	"github.com/eigenbahn/dynix/internal/render"
	"github.com/eigenbahn/dynix/internal/screen"
	"github.com/eigenbahn/dynix/internal/terminal"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the full-screen catalog terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, err := openLibrary(ctx, cfg, libraryOptions{analytics: true})
		if err != nil {
			return err
		}
		defer lib.Close()
		lib.serveMetrics()

		return terminal.Run(ctx, lib.machine(), newRenderer(), cfg.OPAC.HalfDelay)
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the catalog over plain stdin and stdout",
	Long:  "Run the catalog line by line, for serial terminals, pipes and scripted sessions.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, err := openLibrary(ctx, cfg, libraryOptions{analytics: true})
		if err != nil {
			return err
		}
		defer lib.Close()
		lib.serveMetrics()

		ui := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), newRenderer())
		return screen.Run(ctx, lib.machine(), ui, cfg.OPAC.HalfDelay)
	},
}

func newRenderer() *render.Renderer {
	return render.New(render.Options{
		LibraryName:    cfg.OPAC.LibraryName,
		DisplaySeconds: cfg.OPAC.DisplaySeconds,
	})
}
