package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmupgrade/history"
	xtime "github.com/mensylisir/xmupgrade/time"
)

const defaultHistoryLimit = 20

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show the entries of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return fatal(err)
			}
			defer store.Close()

			if len(args) == 1 {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return fatal(err)
				}
				fmt.Fprintln(a.out, entriesTable(run).Render())
				return nil
			}
			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fatal(err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.out, "No runs recorded yet.")
				return nil
			}
			fmt.Fprintln(a.out, runsTable(runs).Render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", defaultHistoryLimit, "number of runs to list")
	return cmd
}

func (a *app) openHistory() (*history.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	path, err := history.DefaultPath(cfg.Misc.HistoryPath)
	if err != nil {
		return nil, err
	}
	return history.Open(path)
}

func plainTable(headers ...string) *table.Table {
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(_, _ int) lipgloss.Style { return cell })
}

func runsTable(runs []history.Run) *table.Table {
	t := plainTable("RUN", "STARTED", "HOST", "MODE", "OK", "SKIPPED", "FAILED", "TOOK")
	for _, r := range runs {
		t.Row(
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Hostname,
			r.Mode,
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			xtime.Elapsed(r.FinishedAt.Sub(r.StartedAt)),
		)
	}
	return t
}

func entriesTable(run *history.Run) *table.Table {
	t := plainTable("PHASE", "NAME", "STATUS", "DETAIL")
	for _, e := range run.Entries {
		t.Row(e.Phase, e.Name, e.Status, e.Detail)
	}
	return t
}
