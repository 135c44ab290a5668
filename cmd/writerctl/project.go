package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	"z-writer-api/internal/wire"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var (
	projectKind        string
	projectDescription string
)

var projectCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := entity.ParseProjectKind(projectKind)
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), func(svc *wire.Services) error {
			p := entity.NewProject(args[0], projectDescription, kind)
			if err := svc.Projects.Create(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, most recently updated first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(cmd.Context(), func(svc *wire.Services) error {
			result, err := svc.Projects.List(cmd.Context(), repository.NewPagination(1, 100))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tTITLE\tUPDATED")
			for _, p := range result.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Kind, p.Title, p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectKind, "kind", string(entity.ProjectKindStructuredDocument), "structured-document, novel or general-assistant")
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
	projectCmd.AddCommand(projectCreateCmd, projectListCmd)
}
