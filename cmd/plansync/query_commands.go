package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"plansync/internal/config"
	"plansync/internal/query"
	"plansync/internal/record"
	"plansync/internal/store"
)

type queryOutput struct {
	json bool
	xlsx string
}

func newQueryCommand(ctx *commandContext) *cobra.Command {
	var (
		filter  query.Filter
		station int64
		out     queryOutput
	)

	cmd := &cobra.Command{
		Use:   "query [TEXT]",
		Short: "Search stored orders by free text and filters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				filter.Text = args[0]
			}
			if cmd.Flags().Changed("station") {
				filter.Station = &station
			}
			return runQuery(cmd, ctx, filter, out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.Plate, "plate", "", "Plate contains")
	flags.StringVar(&filter.Person, "person", "", "Person contains")
	flags.StringVar(&filter.Phone, "phone", "", "Phone contains")
	flags.StringVar(&filter.Email, "email", "", "Email contains")
	flags.StringVar(&filter.Status, "status", "", "Project status contains (e.g. Karo)")
	flags.StringVar(&filter.Damage, "damage", "", "Damage category contains (e.g. KL 2-3)")
	flags.Int64Var(&station, "station", 0, "Station id")
	flags.BoolVar(&filter.MissingParts, "missing-parts", false, "Only orders with missing parts")
	flags.StringVar(&filter.After, "after", "", "Shop date on or after (YYYY-MM-DD)")
	flags.StringVar(&filter.Before, "before", "", "Shop date on or before (YYYY-MM-DD)")
	flags.StringVar(&filter.FinishAfter, "finish-after", "", "Finish date on or after (YYYY-MM-DD)")
	flags.StringVar(&filter.FinishBefore, "finish-before", "", "Finish date on or before (YYYY-MM-DD)")
	flags.IntVar(&filter.Limit, "limit", 0, "Maximum rows (default from query.default_limit)")
	flags.BoolVar(&out.json, "json", false, "Output as JSON")
	flags.StringVar(&out.xlsx, "xlsx", "", "Also write the results to an .xlsx workbook at this path")
	return cmd
}

func newFindCommand(ctx *commandContext) *cobra.Command {
	var (
		limit int
		out   queryOutput
	)
	cmd := &cobra.Command{
		Use:   "find TEXT",
		Short: "Free-text search over stored orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, ctx, query.Filter{Text: args[0], Limit: limit}, out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (default from query.default_limit)")
	cmd.Flags().BoolVar(&out.json, "json", false, "Output as JSON")
	return cmd
}

func runQuery(cmd *cobra.Command, ctx *commandContext, filter query.Filter, out queryOutput) error {
	return ctx.withStore(func(st *store.Store) error {
		engine, err := ctx.queryEngine(st)
		if err != nil {
			return err
		}
		orders, err := engine.Search(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if path := strings.TrimSpace(out.xlsx); path != "" {
			if err := writeWorkbook(path, orders); err != nil {
				return err
			}
		}
		if out.json {
			views := make([]orderView, 0, len(orders))
			for _, o := range orders {
				views = append(views, newOrderView(o, false))
			}
			return writeJSON(cmd, views)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, renderTable(fmt.Sprintf("Query results (%d rows)", len(orders)), orderColumns, orderRows(orders)))
		if out.xlsx != "" {
			fmt.Fprintf(w, "Wrote %d rows to %s\n", len(orders), out.xlsx)
		}
		fmt.Fprintln(w, "Tip: use 'plansync show ID' for full details.")
		return nil
	})
}

func writeWorkbook(path string, orders []record.Order) error {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return fmt.Errorf("resolve --xlsx: %w", err)
	}
	f, err := os.Create(expanded)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := query.ExportXLSX(f, orders); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
