package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"impactline/internal/app"
	"impactline/internal/domain"
	"impactline/internal/engine"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks are work items tied to an objective. Every accepted change bumps the version and writes one audit entry. Deleting moves a task to the trash; purge removes it but keeps its history.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskRestoreCmd())
	task.AddCommand(taskPurgeCmd())
	task.AddCommand(taskLinkCmd(true))
	task.AddCommand(taskLinkCmd(false))
	task.AddCommand(taskTrashCmd())
	task.AddCommand(taskStatsCmd())
	task.AddCommand(taskOverdueCmd())
	task.AddCommand(taskHistoryCmd())
	return task
}

// applyIntent runs one intent and prints the resulting task.
func applyIntent(cmd *cobra.Command, in engine.Intent) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		out, err := a.Engine.Apply(ctx, in, currentActor())
		if err != nil {
			return err
		}
		printWarnings(out.Warnings)
		if out.Item == nil {
			fmt.Println("deleted")
			return nil
		}
		return printJSONOrTable(out.Item)
	})
}

func taskCreateCmd() *cobra.Command {
	var req domain.CreateWorkItemRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task in Pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyIntent(cmd, engine.CreateIntent{Request: req})
		},
	}
	cmd.Flags().StringVar(&req.ObjectiveID, "objective", "", "objective id (created if unknown and auto-create is on)")
	cmd.Flags().StringVar(&req.AssigneeID, "assignee", "", "assignee id")
	cmd.Flags().StringVar(&req.StartDate, "start", "", "start date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&req.DueDate, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&req.Deliverable, "deliverable", "", "deliverable")
	cmd.Flags().StringArrayVar(&req.Evidence, "evidence", nil, "evidence (repeatable)")
	cmd.Flags().StringVar(&req.Intent, "intent", "", "why this task exists")
	cmd.Flags().StringArrayVar(&req.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringArrayVar(&req.LinkedItemIDs, "link", nil, "linked task id (repeatable)")
	cmd.Flags().StringArrayVar(&req.RelatedDocumentIDs, "doc", nil, "related document id (repeatable)")
	cmd.Flags().StringArrayVar(&req.Visibility, "visibility", nil, "visibility group (repeatable; default all)")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f domain.WorkItemFilter
	var status, dueBefore, dueAfter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.WorkItemStatus(status)
			var err error
			if f.DueBefore, err = parseDateFlag("due-before", dueBefore); err != nil {
				return err
			}
			if f.DueAfter, err = parseDateFlag("due-after", dueAfter); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.List(ctx, f)
				if err != nil {
					return err
				}
				return printTasks(items)
			})
		},
	}
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&f.ObjectiveID, "objective", "", "objective filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter (Pending, Active, Done)")
	cmd.Flags().StringVar(&f.CreatedBy, "created-by", "", "creator filter")
	cmd.Flags().StringArrayVar(&f.Tags, "tag", nil, "tag filter (any match, repeatable)")
	cmd.Flags().StringVar(&dueBefore, "due-before", "", "due strictly before date")
	cmd.Flags().StringVar(&dueAfter, "due-after", "", "due strictly after date")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max results")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get task, including trashed ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				item, err := a.Engine.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var objectiveID, assigneeID, start, due, status, deliverable, intent, reason string
	var evidence, tags []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields; only flags given are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p domain.WorkItemPatch
			flags := cmd.Flags()
			if flags.Changed("objective") {
				p.ObjectiveID = ptr(objectiveID)
			}
			if flags.Changed("assignee") {
				p.AssigneeID = ptr(assigneeID)
			}
			if flags.Changed("start") {
				p.StartDate = ptr(start)
			}
			if flags.Changed("due") {
				p.DueDate = ptr(due)
			}
			if flags.Changed("status") {
				p.Status = ptr(domain.WorkItemStatus(status))
			}
			if flags.Changed("deliverable") {
				p.Deliverable = ptr(deliverable)
			}
			if flags.Changed("intent") {
				p.Intent = ptr(intent)
			}
			if flags.Changed("evidence") {
				p.Evidence = ptr(evidence)
			}
			if flags.Changed("tag") {
				p.Tags = ptr(tags)
			}
			return applyIntent(cmd, engine.UpdateIntent{ID: args[0], Patch: p, Reason: reason})
		},
	}
	cmd.Flags().StringVar(&objectiveID, "objective", "", "move to objective")
	cmd.Flags().StringVar(&assigneeID, "assignee", "", "reassign")
	cmd.Flags().StringVar(&start, "start", "", "start date")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	cmd.Flags().StringVar(&status, "status", "", "status (Pending, Active, Done)")
	cmd.Flags().StringVar(&deliverable, "deliverable", "", "deliverable")
	cmd.Flags().StringVar(&intent, "intent", "", "intent")
	cmd.Flags().StringArrayVar(&evidence, "evidence", nil, "replace evidence (repeatable)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "replace tags (repeatable)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit trail")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Move task to trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyIntent(cmd, engine.SoftDeleteIntent{ID: args[0], Reason: reason})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit trail")
	return cmd
}

func taskRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore task from trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyIntent(cmd, engine.RestoreIntent{ID: args[0]})
		},
	}
}

func taskPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <id>",
		Short: "Permanently delete task; history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyIntent(cmd, engine.PermanentDeleteIntent{ID: args[0]})
		},
	}
}

func taskLinkCmd(link bool) *cobra.Command {
	use, short := "link <id> <other-id>", "Link two tasks"
	if !link {
		use, short = "unlink <id> <other-id>", "Unlink two tasks"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if link {
				return applyIntent(cmd, engine.LinkIntent{ID: args[0], OtherID: args[1]})
			}
			return applyIntent(cmd, engine.UnlinkIntent{ID: args[0], OtherID: args[1]})
		},
	}
}

func taskTrashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trash",
		Short: "List soft-deleted tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Trash(ctx)
				if err != nil {
					return err
				}
				return printTasks(items)
			})
		},
	}
}

func taskStatsCmd() *cobra.Command {
	var f domain.WorkItemFilter
	var grouped bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count tasks by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if grouped {
					groups, err := a.Engine.GroupedByStatus(ctx, f)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(groups)
					}
					for _, s := range domain.WorkItemStatuses {
						fmt.Printf("%s (%d)\n", s, len(groups[s]))
						for _, item := range groups[s] {
							fmt.Printf("  %s  due %s  %s\n", item.ID, item.DueDate.Format("2006-01-02"), item.Deliverable)
						}
					}
					return nil
				}
				stats, err := a.Engine.Stats(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Total", "Pending", "Active", "Done", "Overdue"})
				tw.AppendRow(table.Row{stats.Total, stats.Pending, stats.Active, stats.Done, stats.Overdue})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&f.ObjectiveID, "objective", "", "objective filter")
	cmd.Flags().BoolVar(&grouped, "grouped", false, "list tasks grouped by status")
	return cmd
}

func taskOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List tasks past due and not Done",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Overdue(ctx)
				if err != nil {
					return err
				}
				return printTasks(items)
			})
		},
	}
}

func taskHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the audit trail of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printAudit(a.Engine.History(ctx, args[0]))
			})
		},
	}
}

func printTasks(items []domain.WorkItem) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Objective", "Assignee", "Status", "Due", "V", "Deliverable"})
	for _, t := range items {
		tw.AppendRow(table.Row{t.ID, t.ObjectiveID, t.AssigneeID, t.Status, t.DueDate.Format("2006-01-02"), t.Version, t.Deliverable})
	}
	tw.Render()
	return nil
}

func parseDateFlag(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("--%s: invalid date %q", name, raw)
}
