package cmd

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	dbf "github.com/Ulysses-Xu/go-xbase"
)

// memoCmd represents the memo command
var memoCmd = &cobra.Command{
	Use:   "memo <file> <record> <field>",
	Short: "Print the memo text a record field points to",
	Long: `Print the memo text a record field points to.

Example:
  dbfutil memo customers.dbf 0 NOTES`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return errors.Wrapf(err, "invalid record number %q", args[1])
		}

		r, err := openTable(cmd, args[0])
		if err != nil {
			return err
		}
		defer r.Close()

		rec, err := r.RecordAt(uint32(index))
		if err != nil {
			return err
		}
		v, ok := rec.Get(args[2])
		if !ok {
			return errors.Errorf("no field %q", args[2])
		}
		ref, ok := v.(dbf.Memo)
		if !ok {
			return errors.Errorf("field %q is %s, not a memo reference", args[2], v.Type())
		}
		text, err := r.MemoText(ref)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(memoCmd)
}
