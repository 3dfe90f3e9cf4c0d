package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type goalSetSummary struct {
	GoalSetID string `json:"GoalSetID"`
	SHA       string `json:"SHA"`
	Branch    string `json:"Branch"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending goal sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		var sets []goalSetSummary
		if err := adminGet("/goal-sets", &sets); err != nil {
			return err
		}
		if len(sets) == 0 {
			fmt.Println(dimText("no pending goal sets"))
			return nil
		}
		header("pending goal sets")
		for _, s := range sets {
			step("▸", fmt.Sprintf("%s  %s@%s", s.GoalSetID, s.Branch, s.SHA))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
