package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"plansync/internal/services"
	"plansync/internal/store"
)

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored order with its parts and sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			return ctx.withStore(func(st *store.Store) error {
				deleted, err := st.DeleteOrder(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("no order with id=%d: %w", id, services.ErrNotFound)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted order %d\n", id)
				return nil
			})
		},
	}
}
