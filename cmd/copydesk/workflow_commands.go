package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"copydesk/internal/approval"
	"copydesk/internal/items"
	"copydesk/internal/jobs"
	"copydesk/internal/logging"
	"copydesk/internal/workflow"
)

// approvalService wires the transition service over the shared store.
func approvalService(ctx *commandContext) (*approval.Service, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	st, err := ctx.openStore()
	if err != nil {
		return nil, err
	}
	classifier := workflow.NewClassifier(st, ctx.registry)
	runner := jobs.NewRunner(logger.With(logging.String("component", "jobs")), cfg.Jobs.ResultRetention)
	return approval.NewService(cfg, st, classifier, runner, logger), nil
}

func newCheckoutCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "checkout <item-id>",
		Short: "Check out a content item for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := approvalService(ctx)
			if err != nil {
				return err
			}
			actor := ctx.identity()

			var info approval.CheckoutInfo
			if force {
				info, err = svc.ForceCheckOut(cmd.Context(), args[0], actor)
			} else {
				info, err = svc.CheckOut(cmd.Context(), args[0], actor)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if info.Acquired {
				fmt.Fprintf(out, "%s checked out to %s\n", info.ID, info.CheckedOutBy)
				return nil
			}
			fmt.Fprintf(out, "%s is already checked out to %s (use --force to take over)\n", info.ID, info.CheckedOutBy)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Take over an item held by another user")
	return cmd
}

func newCheckinCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "checkin <item-id>",
		Short: "Check in a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := approvalService(ctx)
			if err != nil {
				return err
			}
			if err := svc.CheckIn(cmd.Context(), args[0], ctx.identity()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s checked in\n", args[0])
			return nil
		},
	}
}

func newTransitionCommand(ctx *commandContext) *cobra.Command {
	var comment string
	var site string

	cmd := &cobra.Command{
		Use:   "transition <item-id> <trigger>",
		Short: "Fire a workflow transition on an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := approvalService(ctx)
			if err != nil {
				return err
			}
			result, err := svc.Transition(cmd.Context(), args[0], args[1], comment, site, ctx.identity())
			if err != nil {
				return err
			}
			printTransitionResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "Transition comment")
	cmd.Flags().StringVar(&site, "site", "", "Site the transition is scoped to")
	return cmd
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var comment string
	var site string

	cmd := &cobra.Command{
		Use:   "approve <item-id>",
		Short: "Approve an item together with its dependent assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := approvalService(ctx)
			if err != nil {
				return err
			}
			result, err := svc.Approve(cmd.Context(), args[0], comment, site, ctx.identity())
			if err != nil {
				return err
			}
			printTransitionResult(cmd, result)
			if result.Blocked() {
				return fmt.Errorf("%s was not approved: %d dependent assets failed", result.ID, len(result.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "Approval comment")
	cmd.Flags().StringVar(&site, "site", "", "Site the approval is scoped to")
	return cmd
}

func printTransitionResult(cmd *cobra.Command, result *approval.Result) {
	out := cmd.OutOrStdout()
	if result.Blocked() {
		fmt.Fprintf(out, "%s blocked by %d dependent assets:\n", result.ID, len(result.Failed))
		for _, item := range result.Failed {
			fmt.Fprintf(out, "  - %s: %v\n", item.ID, item.Err)
		}
		return
	}
	fmt.Fprintf(out, "%s is now %s\n", result.ID, displayName(result.State))
}

func newBulkApproveCommand(ctx *commandContext) *cobra.Command {
	var comment string
	var site string

	cmd := &cobra.Command{
		Use:   "bulk-approve <item-id>...",
		Short: "Approve many items in a background job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := approvalService(ctx)
			if err != nil {
				return err
			}
			jobID, err := svc.BulkApprove(cmd.Context(), args, comment, site, ctx.identity())
			if err != nil {
				return err
			}
			// The CLI is short lived, so wait for the job instead of polling.
			svc.Wait()
			printBulkStatus(cmd, svc.BulkApproveStatus(jobID, true))
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "Approval comment")
	cmd.Flags().StringVar(&site, "site", "", "Site the approvals are scoped to")
	return cmd
}

func printBulkStatus(cmd *cobra.Command, status approval.BulkStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s: %s (%d/%d done, %d approved)\n",
		status.JobID, status.Status, status.Done, status.Total, len(status.Approved))
	if len(status.Approved) > 0 {
		fmt.Fprintf(out, "Approved: %s\n", strings.Join(status.Approved, ", "))
	}
	if len(status.Errors) > 0 {
		ids := make([]string, 0, len(status.Errors))
		for id := range status.Errors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintln(out, "Errors:")
		for _, id := range ids {
			fmt.Fprintf(out, "  - %s: %s\n", id, status.Errors[id])
		}
	}
}

func reportRows(report *items.Report) ([][]string, []columnAlignment) {
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		detail := "-"
		if item.Err != nil {
			detail = item.Err.Error()
		}
		rows = append(rows, []string{
			item.ID,
			string(item.AssetType),
			displayName(item.State),
			displayName(string(item.Status)),
			detail,
		})
	}
	return rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
}
