package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	dbf "github.com/Ulysses-Xu/go-xbase"
)

// catCmd represents the cat command
var catCmd = &cobra.Command{
	Use:   "cat <file>",
	Short: "Print the records of a table, one tab separated row per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deleted, _ := cmd.Flags().GetBool("deleted")
		limit, _ := cmd.Flags().GetInt("limit")

		r, err := openTable(cmd, args[0])
		if err != nil {
			return err
		}
		defer r.Close()

		out := cmd.OutOrStdout()
		names := r.Schema().Names()
		if deleted {
			names = append([]string{"*"}, names...)
		}
		fmt.Fprintln(out, strings.Join(names, "\t"))

		printed := 0
		emit := func(rec *dbf.Record) {
			cells := make([]string, 0, rec.Len()+1)
			if deleted {
				mark := ""
				if rec.Deleted {
					mark = "*"
				}
				cells = append(cells, mark)
			}
			for _, v := range rec.Values() {
				cells = append(cells, dbf.Format(v))
			}
			fmt.Fprintln(out, strings.Join(cells, "\t"))
			printed++
		}
		more := func() bool { return limit <= 0 || printed < limit }

		if deleted {
			for i := uint32(0); i < r.NumRecords() && more(); i++ {
				rec, err := r.RecordAt(i)
				if err != nil {
					return err
				}
				emit(rec)
			}
			return nil
		}

		it := r.Records()
		for more() {
			rec, err := it.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			emit(rec)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
	catCmd.Flags().Bool("deleted", false, "include deleted records, marked with *")
	catCmd.Flags().IntP("limit", "n", 0, "stop after this many records (0 means all)")
}
