package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmupgrade/executor"
	"github.com/mensylisir/xmupgrade/runner"
	"github.com/mensylisir/xmupgrade/step"
)

const statusFilteredOut = "filtered out"

func (a *app) stepsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List the steps in run order and whether they would run here",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return fatal(err)
			}
			rtx := a.newContext(executor.Dry, cfg)
			r, err := runner.New(rtx)
			if err != nil {
				return fatal(err)
			}
			plan, err := r.Plan()
			if err != nil {
				return fatal(err)
			}
			fmt.Fprintln(a.out, stepsTable(step.BuiltinCatalog(), plan).Render())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&a.args.Only, "only", nil, "show the plan for --only")
	cmd.Flags().StringSliceVar(&a.args.Skip, "skip", nil, "show the plan for --skip")
	return cmd
}

// stepStatus is "run", the skip reason, or statusFilteredOut for steps left
// out by --only or --skip.
func stepStatus(name string, plan []step.Planned) string {
	for _, p := range plan {
		if p.Step.Name != name {
			continue
		}
		if p.Runnable() {
			return "run"
		}
		return p.SkipReason
	}
	return statusFilteredOut
}

func stepsTable(c *step.Catalog, plan []step.Planned) *table.Table {
	muted := lipgloss.NewStyle().Faint(true)
	rows := make([][]string, 0, len(c.Steps()))
	for _, s := range c.Steps() {
		status := stepStatus(s.Name, plan)
		if status != "run" {
			status = muted.Render(status)
		}
		rows = append(rows, []string{s.Name, status, s.Description})
	}
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("STEP", "STATUS", "DESCRIPTION").
		Rows(rows...).
		StyleFunc(func(_, _ int) lipgloss.Style { return cell })
}
