package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/wire"
	apperrors "z-writer-api/pkg/errors"
)

var chapterCmd = &cobra.Command{
	Use:   "chapter",
	Short: "Manage chapters",
}

var chapterOrder int

var chapterAddCmd = &cobra.Command{
	Use:   "add <project-id> <title>",
	Short: "Add an empty chapter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withServices(ctx, func(svc *wire.Services) error {
			project, err := svc.Projects.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			if project == nil {
				return apperrors.ErrProjectNotFound
			}
			if !project.Profile().Capabilities.ChapterWriting {
				return apperrors.Validation("project kind %s does not support chapters", project.Kind)
			}

			order := chapterOrder
			if order <= 0 {
				existing, err := svc.Chapters.ListByProject(ctx, project.ID)
				if err != nil {
					return err
				}
				order = 1
				if n := len(existing); n > 0 {
					order = existing[n-1].OrderIndex + 1
				}
			}

			ch := entity.NewChapter(project.ID, args[1], order)
			if err := svc.Chapters.Create(ctx, ch); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ch.ID)
			return nil
		})
	},
}

var chapterListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List chapters in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withServices(ctx, func(svc *wire.Services) error {
			chapters, err := svc.Chapters.ListByProject(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tID\tTITLE\tWORDS")
			for _, ch := range chapters {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", ch.OrderIndex, ch.ID, ch.Title, ch.WordCount)
			}
			return w.Flush()
		})
	},
}

func init() {
	chapterAddCmd.Flags().IntVar(&chapterOrder, "order", 0, "order index (defaults to after the last chapter)")
	chapterCmd.AddCommand(chapterAddCmd, chapterListCmd)
}
