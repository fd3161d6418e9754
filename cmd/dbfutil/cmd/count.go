package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// countCmd represents the count command
var countCmd = &cobra.Command{
	Use:   "count <file>",
	Short: "Count the live and deleted records of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openTable(cmd, args[0])
		if err != nil {
			return err
		}
		defer r.Close()

		records, err := r.ReadRange(0, r.NumRecords(), 0)
		if err != nil {
			return err
		}
		var deleted int
		for _, rec := range records {
			if rec.Deleted {
				deleted++
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "live:    %d\n", len(records)-deleted)
		fmt.Fprintf(out, "deleted: %d\n", deleted)
		if stored := r.Header().NumRecords; stored != r.NumRecords() {
			fmt.Fprintf(out, "header:  %d\n", stored)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
