package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"plansync/internal/remote"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the orders currently on the remote planner",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			factory, err := ctx.sessionFactory(logger)
			if err != nil {
				return err
			}
			session, err := factory()
			if err != nil {
				return err
			}
			projects, err := remote.NewClient(session, ctx.configValue().Remote.FormTableID).ProjectStations(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				type entry struct {
					ID         int64  `json:"id"`
					ShortName  string `json:"short_name"`
					Station    string `json:"station"`
					EmployeeID string `json:"employee_id"`
					TheOrder   string `json:"theorder"`
				}
				out := make([]entry, 0, len(projects))
				for _, p := range projects {
					out = append(out, entry{p.ID, p.ShortName, p.Station, p.EmployeeID, p.TheOrder})
				}
				return writeJSON(cmd, out)
			}

			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				id := ""
				if p.HasID() {
					id = strconv.FormatInt(p.ID, 10)
				}
				rows = append(rows, []string{id, p.ShortName, p.Station, p.EmployeeID, p.TheOrder})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				fmt.Sprintf("Orders (%d)", len(projects)),
				[]column{right("ID"), left("Short name"), left("Station"), left("Employee"), left("Order")},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
