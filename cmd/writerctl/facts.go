package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"z-writer-api/internal/wire"
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Inspect extracted context facts",
}

var factsListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List the facts recorded for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withServices(ctx, func(svc *wire.Services) error {
			facts, err := svc.Facts.ListByProject(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tKEY\tVALUE")
			for _, f := range facts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.ContextType, f.Key, f.Value)
			}
			return w.Flush()
		})
	},
}

var factsContextCmd = &cobra.Command{
	Use:   "context <project-id>",
	Short: "Print the context window the next generation will see",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withServices(ctx, func(svc *wire.Services) error {
			project, err := svc.Projects.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			if project == nil {
				return fmt.Errorf("project %s not found", args[0])
			}
			window, err := svc.Builder.Build(ctx, project)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), window.Text)
			return nil
		})
	},
}

func init() {
	factsCmd.AddCommand(factsListCmd, factsContextCmd)
}
