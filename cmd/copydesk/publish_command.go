package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"copydesk/internal/cms"
	"copydesk/internal/items"
	"copydesk/internal/publish"
	"copydesk/internal/workflow"
)

func newPublishedCommand(ctx *commandContext) *cobra.Command {
	var site string
	var status string
	var revision int
	var defaultServer bool

	cmd := &cobra.Command{
		Use:   "published <item-id>...",
		Short: "Process publish-completion events for items",
		Long: "Runs the post-publish coordination pass: each item that published\n" +
			"successfully is moved along the workflow, its local assets have their\n" +
			"revisions locked, and shared assets are transitioned alongside it.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if revision != 0 && len(args) > 1 {
				return fmt.Errorf("--revision only applies to a single item")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}

			classifier := workflow.NewClassifier(st, ctx.registry)
			// Post-publish transitions are server work, run under the
			// configured system user on behalf of the invoker.
			actor := cms.SystemIdentity(cfg.Workflow.SystemUser, ctx.identity().User)
			run := publish.NewRun(cfg, st, classifier, logger, actor)
			for _, id := range args {
				event := publish.Event{
					ItemID:        id,
					Revision:      revision,
					Status:        status,
					Site:          site,
					DefaultServer: defaultServer,
				}
				if _, err := run.ProcessPublishedItem(cmd.Context(), event); err != nil {
					return err
				}
			}

			printRunReport(cmd, run.RunID(), run.Report())
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "Site the publish run delivered to")
	cmd.Flags().StringVar(&status, "status", publish.StatusSuccess, "Publish status reported for the items")
	cmd.Flags().IntVar(&revision, "revision", 0, "Published revision to verify against (0 skips the check)")
	cmd.Flags().BoolVar(&defaultServer, "default-server", false, "Events came from the site's default publishing server")
	return cmd
}

func newWorkflowActionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "workflow-action <item-id> <to-state>",
		Short: "Apply post-transition coordination for a workflow action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}

			classifier := workflow.NewClassifier(st, ctx.registry)
			actor := cms.SystemIdentity(cfg.Workflow.SystemUser, ctx.identity().User)
			run := publish.NewRun(cfg, st, classifier, logger, actor)
			action := publish.Action{ItemID: args[0], ToState: workflow.StateName(args[1])}
			if err := run.ProcessWorkflowAction(cmd.Context(), action); err != nil {
				return err
			}
			printRunReport(cmd, run.RunID(), run.Report())
			return nil
		},
	}
}

func printRunReport(cmd *cobra.Command, runID string, report *items.Report) {
	out := cmd.OutOrStdout()
	processed, ignored, failed := report.Counts()
	fmt.Fprintf(out, "Run %s: %d processed, %d ignored, %d failed\n", runID, processed, ignored, failed)
	if len(report.Items) == 0 {
		return
	}
	rows, aligns := reportRows(report)
	printRows([]string{"ID", "Kind", "State", "Outcome", "Detail"}, rows, aligns)
}
