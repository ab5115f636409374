package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"impactline/internal/app"
	"impactline/internal/domain"
	"impactline/internal/engine"
	"impactline/internal/knowledge"
)

func docCmd() *cobra.Command {
	doc := &cobra.Command{
		Use:   "doc",
		Short: "Manage knowledge documents",
		Long:  "Documents are versioned. Every accepted edit writes a new version; restoring an old version writes a newer one with that content.",
	}
	doc.AddCommand(docCreateCmd())
	doc.AddCommand(docListCmd())
	doc.AddCommand(docGetCmd())
	doc.AddCommand(docUpdateCmd())
	doc.AddCommand(docDeleteCmd())
	doc.AddCommand(docViewCmd())
	doc.AddCommand(docVersionsCmd())
	doc.AddCommand(docVersionCmd())
	doc.AddCommand(docCompareCmd())
	doc.AddCommand(docRestoreCmd())
	doc.AddCommand(docTaskLinkCmd(true))
	doc.AddCommand(docTaskLinkCmd(false))
	doc.AddCommand(docTemplatesCmd())
	doc.AddCommand(docFromTemplateCmd())
	doc.AddCommand(docConvertCmd())
	doc.AddCommand(docTaskFromTemplateCmd())
	return doc
}

// documentCall runs fn with the CLI actor and prints the resulting document.
func documentCall(cmd *cobra.Command, fn func(ctx context.Context, k knowledge.Service, actorID string) (domain.Document, error)) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		d, err := fn(ctx, a.Knowledge, viper.GetString("actor-id"))
		if err != nil {
			return err
		}
		return printJSONOrTable(d)
	})
}

// documentOutcome is documentCall for helpers that also report warnings.
func documentOutcome(cmd *cobra.Command, fn func(ctx context.Context, k knowledge.Service, actorID string) (knowledge.Outcome, error)) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		out, err := fn(ctx, a.Knowledge, viper.GetString("actor-id"))
		if err != nil {
			return err
		}
		printWarnings(out.Warnings)
		return printJSONOrTable(out.Document)
	})
}

func applyDocument(cmd *cobra.Command, in knowledge.Intent) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		out, err := a.Knowledge.Apply(ctx, in, viper.GetString("actor-id"))
		if err != nil {
			return err
		}
		printWarnings(out.Warnings)
		return printJSONOrTable(out.Document)
	})
}

// readContent returns --content, or the file named by --file ("-" is stdin).
func readContent(content, file string) (string, error) {
	switch file {
	case "":
		return content, nil
	case "-":
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	default:
		b, err := os.ReadFile(file)
		return string(b), err
	}
}

func docCreateCmd() *cobra.Command {
	var req domain.CreateDocumentRequest
	var category, status, file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create document at version 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.Content, err = readContent(req.Content, file); err != nil {
				return err
			}
			req.Category = domain.DocumentCategory(category)
			req.Status = domain.DocumentStatus(status)
			return applyDocument(cmd, knowledge.CreateIntent{Request: req})
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "title")
	cmd.Flags().StringVar(&category, "category", "", "category (process, guideline, policy, tutorial, reference, template, other)")
	cmd.Flags().StringVar(&req.Content, "content", "", "content")
	cmd.Flags().StringVar(&file, "file", "", "read content from file (- for stdin)")
	cmd.Flags().StringVar(&status, "status", "", "status (draft, published); default draft")
	cmd.Flags().StringArrayVar(&req.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringArrayVar(&req.Visibility, "visibility", nil, "visibility group (repeatable)")
	cmd.Flags().StringArrayVar(&req.RelatedItemIDs, "task", nil, "related task id (repeatable)")
	cmd.Flags().StringArrayVar(&req.RelatedDocumentIDs, "related", nil, "related document id (repeatable)")
	return cmd
}

func docListCmd() *cobra.Command {
	var f domain.DocumentFilter
	var category, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Category = domain.DocumentCategory(category)
			f.Status = domain.DocumentStatus(status)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				docs, err := a.Knowledge.List(ctx, f)
				if err != nil {
					return err
				}
				return printDocuments(docs)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().BoolVar(&f.IncludeArchived, "archived", false, "include archived documents")
	cmd.Flags().BoolVar(&f.TemplatesOnly, "templates", false, "templates only")
	cmd.Flags().StringVar(&f.CreatedBy, "created-by", "", "creator filter")
	cmd.Flags().StringArrayVar(&f.Tags, "tag", nil, "tag filter (repeatable)")
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "search title, content, and keywords")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max results")
	return cmd
}

func docGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := a.Knowledge.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func docUpdateCmd() *cobra.Command {
	var title, category, content, file, status, reason string
	var tags, visibility []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update document; writes a new version when anything changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p domain.DocumentPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				p.Title = ptr(title)
			}
			if flags.Changed("category") {
				p.Category = ptr(domain.DocumentCategory(category))
			}
			if flags.Changed("content") || flags.Changed("file") {
				body, err := readContent(content, file)
				if err != nil {
					return err
				}
				p.Content = ptr(body)
			}
			if flags.Changed("status") {
				p.Status = ptr(domain.DocumentStatus(status))
			}
			if flags.Changed("tag") {
				p.Tags = ptr(tags)
			}
			if flags.Changed("visibility") {
				p.Visibility = ptr(visibility)
			}
			return applyDocument(cmd, knowledge.UpdateIntent{ID: args[0], Patch: p, Reason: reason})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&content, "content", "", "content")
	cmd.Flags().StringVar(&file, "file", "", "read content from file (- for stdin)")
	cmd.Flags().StringVar(&status, "status", "", "status (draft, published, archived)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "replace tags (repeatable)")
	cmd.Flags().StringArrayVar(&visibility, "visibility", nil, "replace visibility (repeatable)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the version")
	return cmd
}

func docDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Archive document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyDocument(cmd, knowledge.ArchiveIntent{ID: args[0]})
		},
	}
}

func docViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <id>",
		Short: "Record a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Knowledge.RecordView(ctx, args[0])
			})
		},
	}
}

func docVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List versions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				versions, err := a.Knowledge.Versions(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(versions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Change", "By", "At", "Reason", "Changes"})
				for _, v := range versions {
					tw.AppendRow(table.Row{v.Number, v.ChangeType, v.CreatedBy, v.CreatedAt.Format("2006-01-02 15:04"), v.Reason, strings.Join(v.Changes, "; ")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func docVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version <id> <number>",
		Short: "Show one version snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := versionArg(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				v, err := a.Knowledge.Version(ctx, args[0], n)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
}

func docCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <id> <from> <to>",
		Short: "Field-level diff between two versions",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := versionArg(args[1])
			if err != nil {
				return err
			}
			to, err := versionArg(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				diff, err := a.Knowledge.CompareVersions(ctx, args[0], from, to)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(diff)
				}
				fmt.Printf("v%d -> v%d by %s at %s\n", diff.From, diff.To, diff.ChangedBy, diff.Timestamp.Format("2006-01-02 15:04"))
				printChanges(diff.Changes)
				return nil
			})
		},
	}
}

func docRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id> <number>",
		Short: "Restore an old version as a new version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := versionArg(args[1])
			if err != nil {
				return err
			}
			return applyDocument(cmd, knowledge.RestoreVersionIntent{ID: args[0], Number: n})
		},
	}
}

func docTaskLinkCmd(link bool) *cobra.Command {
	use, short := "link-task <id> <task-id>", "Relate a task to the document"
	if !link {
		use, short = "unlink-task <id> <task-id>", "Remove a related task"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return documentCall(cmd, func(ctx context.Context, k knowledge.Service, actorID string) (domain.Document, error) {
				if link {
					return k.LinkTask(ctx, args[0], args[1], actorID)
				}
				return k.UnlinkTask(ctx, args[0], args[1], actorID)
			})
		},
	}
}

func docTemplatesCmd() *cobra.Command {
	var category string
	var statsFor string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List templates, or usage of one template with --stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if statsFor != "" {
					stats, err := a.Knowledge.TemplateStatsFor(ctx, statsFor)
					if err != nil {
						return err
					}
					return printJSON(stats)
				}
				docs, err := a.Knowledge.Templates(ctx, domain.DocumentCategory(category))
				if err != nil {
					return err
				}
				return printDocuments(docs)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&statsFor, "stats", "", "template id to report usage for")
	return cmd
}

func docFromTemplateCmd() *cobra.Command {
	var req domain.FromTemplateRequest
	var category string
	var values []string
	cmd := &cobra.Command{
		Use:   "from-template <template-id>",
		Short: "Create a document by filling a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Category = domain.DocumentCategory(category)
			var err error
			if req.Values, err = parseValues(values); err != nil {
				return err
			}
			return documentOutcome(cmd, func(ctx context.Context, k knowledge.Service, actorID string) (knowledge.Outcome, error) {
				return k.CreateFromTemplate(ctx, args[0], req, actorID)
			})
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "title")
	cmd.Flags().StringVar(&category, "category", "", "category (defaults to other)")
	cmd.Flags().StringArrayVar(&values, "set", nil, "placeholder value as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&req.Tags, "tag", nil, "tag (repeatable)")
	return cmd
}

func docConvertCmd() *cobra.Command {
	var data domain.TemplateData
	cmd := &cobra.Command{
		Use:   "convert <id>",
		Short: "Turn a document into a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return documentOutcome(cmd, func(ctx context.Context, k knowledge.Service, actorID string) (knowledge.Outcome, error) {
				return k.ConvertToTemplate(ctx, args[0], data, actorID)
			})
		},
	}
	cmd.Flags().StringArrayVar(&data.Placeholders, "placeholder", nil, "placeholder name (repeatable)")
	cmd.Flags().StringArrayVar(&data.RequiredFields, "required", nil, "required placeholder (repeatable)")
	cmd.Flags().StringVar(&data.Instructions, "instructions", "", "usage instructions")
	return cmd
}

// parseValues turns repeated --set key=value flags into a map.
func parseValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: want key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}

func docTaskFromTemplateCmd() *cobra.Command {
	var req domain.FromTemplateTaskRequest
	var values []string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "task-from-template <template-id>",
		Short: "Create a task whose deliverable is the filled template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.Values, err = parseValues(values); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				task, err := a.Knowledge.TaskRequestFromTemplate(ctx, args[0], req)
				if err != nil {
					return err
				}
				if dryRun {
					return printJSON(task)
				}
				out, err := a.Engine.Apply(ctx, engine.CreateIntent{Request: task}, currentActor())
				if err != nil {
					return err
				}
				printWarnings(out.Warnings)
				return printJSONOrTable(out.Item)
			})
		},
	}
	cmd.Flags().StringVar(&req.AssigneeID, "assignee", "", "assignee id")
	cmd.Flags().StringVar(&req.StartDate, "start", "", "start date")
	cmd.Flags().StringVar(&req.DueDate, "due", "", "due date")
	cmd.Flags().StringArrayVar(&values, "set", nil, "placeholder value as key=value (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the task request without creating it")
	return cmd
}

func printDocuments(docs []domain.Document) error {
	if viper.GetBool("json") {
		return printJSON(docs)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Category", "Status", "V", "Views", "Updated"})
	for _, d := range docs {
		tw.AppendRow(table.Row{d.ID, d.Title, d.Category, d.Status, d.Version, d.ViewCount, d.UpdatedAt.Format("2006-01-02")})
	}
	tw.Render()
	return nil
}

func printChanges(changes []domain.FieldChange) {
	if len(changes) == 0 {
		fmt.Println("no changes")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Field", "Old", "New"})
	for _, c := range changes {
		tw.AppendRow(table.Row{c.Field, fmt.Sprint(c.OldValue), fmt.Sprint(c.NewValue)})
	}
	tw.Render()
}

func versionArg(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid version %q", raw)
	}
	return n, nil
}
