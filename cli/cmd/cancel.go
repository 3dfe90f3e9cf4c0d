package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelAll bool

var cancelCmd = &cobra.Command{
	Use:   "cancel [goal-set-id]",
	Short: "Cancel one pending goal set, or every pending goal set with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cancelAll {
			if err := adminDo("DELETE", "/goal-sets", nil); err != nil {
				fail(err.Error())
				return err
			}
			success("canceled every pending goal set")
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("cancel requires a goal-set id, or --all")
		}
		id := args[0]
		err := adminDo("DELETE", "/goal-sets/"+id, nil)
		if err == errNotFound {
			warn(fmt.Sprintf("goal set %s is no longer pending", id))
			return nil
		}
		if err != nil {
			fail(err.Error())
			return err
		}
		success(fmt.Sprintf("canceled goal set %s", id))
		return nil
	},
}

func init() {
	cancelCmd.Flags().BoolVar(&cancelAll, "all", false, "cancel every pending goal set")
	rootCmd.AddCommand(cancelCmd)
}
