package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hoursboard/internal/core"
	"hoursboard/internal/loader"
)

func newColumnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns FILE",
		Short: "Print the columns of a spreadsheet and the values of its filter columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printColumns(cmd.OutOrStdout(), args[0])
		},
	}
}

func printColumns(w io.Writer, path string) error {
	t, _, err := loader.LoadFile(path)
	if err != nil {
		return err
	}
	for _, c := range t.Columns {
		fmt.Fprintln(w, c)
	}
	first, last, ok := t.DateBounds()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "rows: %d\n", len(t.Records))
	if ok {
		fmt.Fprintf(w, "dates: %s to %s\n", first, last)
	}
	for _, col := range core.CategoricalColumns {
		fmt.Fprintf(w, "%s: %s\n", col, strings.Join(core.Distinct(t.Records, col), ", "))
	}
	return nil
}
