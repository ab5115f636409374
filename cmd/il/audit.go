package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"impactline/internal/app"
	"impactline/internal/audit"
	"impactline/internal/domain"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit trail",
	}
	cmd.AddCommand(auditRecentCmd())
	cmd.AddCommand(auditActorCmd())
	cmd.AddCommand(auditActionCmd())
	cmd.AddCommand(auditRangeCmd())
	cmd.AddCommand(auditCountCmd())
	cmd.AddCommand(auditExportCmd())
	return cmd
}

func auditRecentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Newest entries across all tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n := limit
				if n <= 0 {
					n = a.Config.Audit.RecentLimit
				}
				return printAudit(a.Audit().Recent(ctx, n))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries (defaults to audit.recent_limit)")
	return cmd
}

func auditActorCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "actor <actor-id>",
		Short: "Entries written by one actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printAudit(a.Audit().ByActor(ctx, args[0], limit))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries")
	return cmd
}

func auditActionCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "action <action>",
		Short: "Entries with one action (created, updated, deleted, status_changed, reassigned, linked, unlinked)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := domain.AuditAction(args[0])
			if !action.Valid() {
				return fmt.Errorf("invalid action %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printAudit(a.Audit().ByAction(ctx, action, limit))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries")
	return cmd
}

func auditRangeCmd() *cobra.Command {
	var since, until string
	var limit int
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Entries in a time window; defaults to the last 30 days",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDateFlag("since", since)
			if err != nil {
				return err
			}
			to, err := parseDateFlag("until", until)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var s, u time.Time
				if from != nil {
					s = *from
				}
				if to != nil {
					u = *to
				}
				return printAudit(a.Audit().ByRange(ctx, s, u, limit))
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "window start")
	cmd.Flags().StringVar(&until, "until", "", "window end")
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries")
	return cmd
}

// auditFilterFlags holds the filter flags shared by count and export.
type auditFilterFlags struct {
	itemID, actorID, action, since, until string
	limit, offset                         int
}

func (f *auditFilterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.itemID, "item", "", "task id")
	cmd.Flags().StringVar(&f.actorID, "actor", "", "actor id")
	cmd.Flags().StringVar(&f.action, "action", "", "action")
	cmd.Flags().StringVar(&f.since, "since", "", "not before")
	cmd.Flags().StringVar(&f.until, "until", "", "not after")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "max entries")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "skip entries")
}

func (f auditFilterFlags) filter() (domain.AuditFilter, error) {
	out := domain.AuditFilter{
		ItemID:  f.itemID,
		ActorID: f.actorID,
		Action:  domain.AuditAction(f.action),
		Limit:   f.limit,
		Offset:  f.offset,
	}
	if out.Action != "" && !out.Action.Valid() {
		return out, fmt.Errorf("invalid action %q", f.action)
	}
	var err error
	if out.Since, err = parseDateFlag("since", f.since); err != nil {
		return out, err
	}
	if out.Until, err = parseDateFlag("until", f.until); err != nil {
		return out, err
	}
	return out, nil
}

func auditCountCmd() *cobra.Command {
	var flags auditFilterFlags
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count entries matching the filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filter()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n := a.Audit().Count(ctx, f)
				if viper.GetBool("json") {
					return printJSON(map[string]int{"count": n})
				}
				fmt.Println(n)
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func auditExportCmd() *cobra.Command {
	var flags auditFilterFlags
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entries as JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("--format must be json or csv")
			}
			f, err := flags.filter()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if f.Limit <= 0 {
					f.Limit = a.Config.Audit.ExportLimit
				}
				entries := a.Audit().Export(ctx, f)
				var buf bytes.Buffer
				write := func(w io.Writer) error { return audit.WriteJSON(w, entries, f, a.Store.Now()) }
				if format == "csv" {
					write = func(w io.Writer) error { return audit.WriteCSV(w, entries) }
				}
				if err := write(&buf); err != nil {
					return err
				}
				var w io.Writer = os.Stdout
				if out != "" {
					file, err := os.Create(out)
					if err != nil {
						return err
					}
					defer file.Close()
					w = file
				}
				if _, err := buf.WriteTo(w); err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintf(os.Stderr, "exported %d entries to %s\n", len(entries), out)
				}
				return nil
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&format, "format", "json", "json or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func printAudit(entries []domain.AuditEntry) error {
	if viper.GetBool("json") {
		return printJSON(entries)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"When", "Item", "Actor", "Action", "Reason"})
	for _, e := range entries {
		tw.AppendRow(table.Row{e.Timestamp.Format("2006-01-02 15:04:05"), e.ItemID, e.ActorID, e.Action, e.Reason})
	}
	tw.Render()
	return nil
}
