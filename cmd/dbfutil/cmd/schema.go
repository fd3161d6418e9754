package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "Print the header and field layout of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openTable(cmd, args[0])
		if err != nil {
			return err
		}
		defer r.Close()

		h := r.Header()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "variant:  %s\n", r.Variant())
		fmt.Fprintf(out, "modified: %s\n", h.Modified().Format("2006-01-02"))
		fmt.Fprintf(out, "records:  %d\n", r.NumRecords())
		fmt.Fprintf(out, "encoding: %s\n", r.Encoding().Name())
		fmt.Fprintf(out, "memo:     %t\n", h.HasMemo())
		for _, q := range r.Quirks() {
			fmt.Fprintf(out, "quirk:    %s\n", q)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tLENGTH\tDECIMAL\tOFFSET")
		for _, f := range r.Schema().Fields() {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", f.Name, f.Type, f.Length, f.Decimal, f.Offset())
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
