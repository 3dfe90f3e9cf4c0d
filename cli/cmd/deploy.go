package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "View or toggle per-repo deploy enablement",
}

var deployEnableCmd = &cobra.Command{
	Use:   "enable <repo>",
	Short: "Re-enable deploy goals for a repo",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setDeploy(args[0], true) },
}

var deployDisableCmd = &cobra.Command{
	Use:   "disable <repo>",
	Short: "Pause deploy goals for a repo",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setDeploy(args[0], false) },
}

var deployStatusCmd = &cobra.Command{
	Use:   "status <repo>",
	Short: "Report whether deploy goals are enabled for a repo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Enabled bool `json:"enabled"`
		}
		if err := adminGet(fmt.Sprintf("/repos/%s/deploy", args[0]), &resp); err != nil {
			return err
		}
		state := "enabled"
		if !resp.Enabled {
			state = "disabled"
		}
		fmt.Printf("deploy for %s is %s\n", args[0], state)
		return nil
	},
}

func setDeploy(repo string, enabled bool) error {
	body := fmt.Sprintf(`{"enabled":%t}`, enabled)
	if err := adminDo("PUT", fmt.Sprintf("/repos/%s/deploy", repo), strings.NewReader(body)); err != nil {
		fail(err.Error())
		return err
	}
	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	success(fmt.Sprintf("deploy %s for %s", verb, repo))
	return nil
}

func init() {
	deployCmd.AddCommand(deployEnableCmd, deployDisableCmd, deployStatusCmd)
	rootCmd.AddCommand(deployCmd)
}
