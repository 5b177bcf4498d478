package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/tracing"
	"github.com/spf13/cobra"
)

var showActivations int

var inspectCmd = &cobra.Command{
	Use:   "inspect file.sqlite3",
	Short: "List the tables of a SQLite recording and their row counts.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return err
		}

		reader := datarecording.NewReader(args[0])
		defer reader.Close()

		tables, err := reader.StoredTables(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TABLE\tROWS")

		for _, t := range tables {
			n, err := reader.Count(cmd.Context(), t)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "%s\t%d\n", t, n)
		}

		if showActivations > 0 {
			activations, total, err := tracing.LoadActivations(
				cmd.Context(), reader, showActivations)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "\nFirst %d of %d activations\n",
				len(activations), total)
			fmt.Fprintln(w, "TIME\tPROCESS\tEVENT")

			for _, a := range activations {
				fmt.Fprintf(w, "%.4f\t%s\t%s\n", a.Time, a.ProcessName, a.Event)
			}
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().IntVar(&showActivations, "activations", 0,
		"Also print this many recorded activations")
}
