package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/recall"
	"github.com/eigenbahn/dynix/internal/session"
	apperrors "github.com/eigenbahn/dynix/pkg/errors"
)

var (
	backendName string
	listTitles  bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <search-type> <words...>",
	Short: "Print the backend predicate for a search",
	Example: `  opac compile title cat's cradle
  opac compile --backend archive word comput?`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary(cmd.Context(), cfg, libraryOptions{only: backendFlag()})
		if err != nil {
			return err
		}
		defer lib.Close()
		b, err := lib.backend(backendName)
		if err != nil {
			return err
		}
		return printPredicate(cmd.OutOrStdout(), b, catalog.SearchType(args[0]), strings.Join(args[1:], " "))
	},
}

var countCmd = &cobra.Command{
	Use:   "count <search-type> <words...>",
	Short: "Run a search and print the running count after each word",
	Example: `  opac count title gone wind
  opac count --list --backend archive title huckleberry`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary(cmd.Context(), cfg, libraryOptions{only: backendFlag()})
		if err != nil {
			return err
		}
		defer lib.Close()
		b, err := lib.backend(backendName)
		if err != nil {
			return err
		}

		s, err := session.Begin(strings.Join(args[1:], " "), b, catalog.SearchType(args[0]))
		if err != nil {
			return usageError(err)
		}
		if err := s.CountIncremental(cmd.Context()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printCounts(out, s)
		if !listTitles || s.Total() == 0 {
			return nil
		}
		if err := s.FetchAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(out)
		printTitles(out, s.Results())
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{compileCmd, countCmd} {
		c.Flags().StringVar(&backendName, "backend", "", "backend to search (default: the first menu entry's)")
	}
	countCmd.Flags().BoolVar(&listTitles, "list", false, "also list the matching titles")
}

func backendFlag() string {
	if backendName != "" {
		return backendName
	}
	if len(cfg.OPAC.Menu) > 0 {
		return cfg.OPAC.Menu[0].Backend
	}
	return ""
}

func usageError(err error) error {
	return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
}

func printPredicate(w io.Writer, b catalog.Backend, t catalog.SearchType, raw string) error {
	q := recall.Parse(raw)
	if q.Empty() {
		return usageError(session.ErrEmptyQuery)
	}
	fields, err := b.FieldsForSearchType(t)
	if err != nil {
		return usageError(err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "backend\t%s (%s)\n", b.Name(), b.Dialect())
	for _, term := range q.Terms() {
		fmt.Fprintf(tw, "term\t%s\t%s\t%s\n", term.Text, term.Kind, term.Stem)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	p := b.Compiler().Compile(q.Terms(), fields)
	fmt.Fprintf(w, "\n%s\n", p.Expr)
	for i, a := range p.Args {
		fmt.Fprintf(w, "  $%d = %v\n", i+1, a)
	}
	return nil
}

func printCounts(w io.Writer, s *session.Session) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, tc := range s.Counts() {
		fmt.Fprintf(tw, "%s\t%d\t\n", tc.Term, tc.Count)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d titles match %q\n", s.Total(), s.Query().Raw)
}

func printTitles(w io.Writer, items []catalog.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, it := range items {
		fmt.Fprintf(tw, "%4d.\t%s\t%s\t%s\n", i+1, it.Title, strings.Join(it.Authors, "; "), it.PubDate)
	}
	tw.Flush()
}
