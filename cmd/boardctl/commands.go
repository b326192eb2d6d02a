package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/blondeglamazon/message-board-sub000/internal/database"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/seed"
	"github.com/blondeglamazon/message-board-sub000/internal/service"

	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := database.Migrate(c.db); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "schema up to date\n")
			return nil
		},
	}
}

func newSeedCmd(c *cli) *cobra.Command {
	var (
		fixturePath string
		generate    int
		postsEach   int
		fakerSeed   int64
		clean       bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture or generated demo data",
		Long: `Load data for development.

Without flags the bundled demo fixture is loaded. --fixture loads a YAML file
instead, and --generate creates that many fake accounts with posts and a
random follow graph.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if clean {
				if err := seed.ClearAll(ctx, c.db); err != nil {
					return err
				}
			}

			var (
				res *seed.Result
				err error
			)
			switch {
			case generate > 0:
				opts := seed.DefaultDemoOptions
				opts.Accounts = generate
				if postsEach >= 0 {
					opts.PostsPerAccount = postsEach
				}
				res, err = seed.NewFactory(c.db, fakerSeed).SeedDemo(ctx, opts)
			default:
				var f *seed.Fixture
				if fixturePath != "" {
					f, err = seed.LoadFixtureFile(fixturePath)
				} else {
					f, err = seed.DemoFixture()
				}
				if err != nil {
					return err
				}
				res, err = seed.Apply(ctx, c.db, f)
			}
			if err != nil {
				return err
			}

			printf(cmd.OutOrStdout(), "seeded %d accounts, %d posts, %d follows, %d blocks, %d reports\n",
				res.Accounts, res.Posts, res.Follows, res.Blocks, res.Reports)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "YAML fixture file")
	cmd.Flags().IntVar(&generate, "generate", 0, "number of fake accounts to generate")
	cmd.Flags().IntVar(&postsEach, "posts", -1, "posts per generated account")
	cmd.Flags().Int64Var(&fakerSeed, "seed", 1, "random seed for generated data")
	cmd.Flags().BoolVar(&clean, "clean", false, "delete all existing rows first")
	cmd.MarkFlagsMutuallyExclusive("fixture", "generate")
	return cmd
}

func newSetRoleCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role USERNAME ROLE",
		Short: "Change an account's role (user or admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			actor, err := c.actor(ctx)
			if err != nil {
				return err
			}
			target, err := c.account(ctx, args[0])
			if err != nil {
				return err
			}
			updated, err := c.moderation().UpdateUserRole(ctx, actor, target.ID, models.Role(args[1]))
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s is now %s\n", updated.Username, updated.Role)
			return nil
		},
	}
}

func newDeleteUserCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user USERNAME",
		Short: "Delete an account with its posts and interactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			actor, err := c.actor(ctx)
			if err != nil {
				return err
			}
			target, err := c.account(ctx, args[0])
			if err != nil {
				return err
			}
			if err := c.moderation().DeleteUser(ctx, actor, target.ID); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "deleted %s\n", target.Username)
			return nil
		},
	}
}

func newReportsCmd(c *cli) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List pending reports, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			actor, err := c.actor(ctx)
			if err != nil {
				return err
			}
			views, err := c.moderation().ListPendingReports(ctx, actor, service.NewPage(limit, 0))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printf(w, "ID\tPOST\tAUTHOR\tREPORTER\tREASON\n")
			for _, v := range views {
				post, author, reporter := "(deleted)", "-", "-"
				if v.Post != nil {
					post = strconv.FormatUint(uint64(v.Post.ID), 10)
				}
				if v.Author != nil {
					author = v.Author.Username
				}
				if v.Reporter != nil {
					reporter = v.Reporter.Username
				}
				printf(w, "%d\t%s\t%s\t%s\t%s\n", v.Report.ID, post, author, reporter, v.Report.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", service.DefaultPageSize, "maximum reports to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newResolveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve REPORT_ID dismiss|delete",
		Short: "Resolve a pending report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid report id %q", args[0])
			}
			actor, err := c.actor(ctx)
			if err != nil {
				return err
			}
			res, err := c.moderation().ResolveReport(ctx, actor, uint(id), models.ModerationAction(args[1]))
			if err != nil {
				return err
			}
			switch {
			case res.AlreadyResolved:
				printf(cmd.OutOrStdout(), "report %d was already resolved (%s)\n", res.Report.ID, res.Report.Resolution)
			case res.PostDeleted:
				printf(cmd.OutOrStdout(), "report %d resolved, post %d deleted\n", res.Report.ID, res.Report.PostID)
			default:
				printf(cmd.OutOrStdout(), "report %d resolved (%s)\n", res.Report.ID, args[1])
			}
			return nil
		},
	}
}

func newAuditLogCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit-log",
		Short: "Show recent admin actions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			actor, err := c.actor(ctx)
			if err != nil {
				return err
			}
			entries, err := c.moderation().ListAuditLog(ctx, actor, service.NewPage(limit, 0))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printf(w, "TIME\tADMIN\tACTION\tTARGET\tDETAILS\n")
			for _, e := range entries {
				printf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.UTC().Format("2006-01-02 15:04:05"), e.AdminEmail, e.ActionType, e.TargetID, string(e.Details))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", service.DefaultPageSize, "maximum entries to show")
	return cmd
}
