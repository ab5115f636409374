package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"impactline/internal/app"
	"impactline/internal/domain"
)

func objectiveCmd() *cobra.Command {
	obj := &cobra.Command{
		Use:     "objective",
		Aliases: []string{"obj"},
		Short:   "Manage objectives",
	}
	obj.AddCommand(objectiveCreateCmd())
	obj.AddCommand(objectiveListCmd())
	obj.AddCommand(objectiveGetCmd())
	obj.AddCommand(objectiveUpdateCmd())
	obj.AddCommand(objectiveArchiveCmd())
	obj.AddCommand(objectiveStatsCmd())
	return obj
}

func objectiveCreateCmd() *cobra.Command {
	var req domain.CreateObjectiveRequest
	var due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create objective",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.DueDate, err = parseDateFlag("due", due); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				o, err := a.Engine.Objectives.Create(ctx, req, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&req.ID, "id", "", "explicit objective id")
	cmd.Flags().StringVar(&req.Title, "title", "", "title")
	cmd.Flags().StringVar(&req.Description, "description", "", "description")
	cmd.Flags().StringVar(&req.OwnerID, "owner", "", "owner id")
	cmd.Flags().StringArrayVar(&req.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "target date")
	return cmd
}

func objectiveListCmd() *cobra.Command {
	var f domain.ObjectiveFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List objectives",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.ObjectiveStatus(status)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				objectives, err := a.Engine.Objectives.List(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(objectives)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Owner", "Status", "Members", "Due"})
				for _, o := range objectives {
					tw.AppendRow(table.Row{o.ID, o.Title, o.OwnerID, o.Status, len(o.MemberIDs), dateOrEmpty(o.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter (active, completed, archived)")
	cmd.Flags().StringArrayVar(&f.Tags, "tag", nil, "tag filter (repeatable)")
	return cmd
}

func objectiveGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				o, err := a.Engine.Objectives.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

func objectiveUpdateCmd() *cobra.Command {
	var title, description, owner, status, due string
	var tags []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update objective fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p domain.ObjectivePatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				p.Title = ptr(title)
			}
			if flags.Changed("description") {
				p.Description = ptr(description)
			}
			if flags.Changed("owner") {
				p.OwnerID = ptr(owner)
			}
			if flags.Changed("status") {
				p.Status = ptr(domain.ObjectiveStatus(status))
			}
			if flags.Changed("tag") {
				p.Tags = ptr(tags)
			}
			if flags.Changed("due") {
				d, err := parseDateFlag("due", due)
				if err != nil {
					return err
				}
				p.DueDate = d
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				o, err := a.Engine.Objectives.Update(ctx, args[0], p)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	cmd.Flags().StringVar(&status, "status", "", "status (active, completed, archived)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "replace tags (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "target date")
	return cmd
}

func objectiveArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				o, err := a.Engine.Objectives.Archive(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

func objectiveStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <id>",
		Short: "Task counts for an objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				stats, err := a.Engine.ObjectiveStats(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				fmt.Printf("%s: %d members\n", stats.ObjectiveID, stats.Members)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Total", "Pending", "Active", "Done", "Overdue"})
				tw.AppendRow(table.Row{stats.Items.Total, stats.Items.Pending, stats.Items.Active, stats.Items.Done, stats.Items.Overdue})
				tw.Render()
				return nil
			})
		},
	}
}
