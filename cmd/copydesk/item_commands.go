package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"copydesk/internal/cms"
	"copydesk/internal/store"
	"copydesk/internal/workflow"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List content items in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			records, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No content items")
				return nil
			}

			headers := []string{"ID", "State", "Workflow", "Type", "Rev", "Public", "Checked Out By"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				checkedOut := rec.CheckedOutBy
				if checkedOut == "" {
					checkedOut = "-"
				}
				rows = append(rows, []string{
					rec.ID,
					displayName(rec.State),
					rec.Workflow,
					rec.ContentType,
					strconv.Itoa(rec.Revision),
					strconv.Itoa(rec.PublicRevision),
					checkedOut,
				})
			}
			printRows(headers, rows, aligns)
			return nil
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one content item with its relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			rec, err := st.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:        %s\n", rec.ID)
			fmt.Fprintf(out, "State:     %s\n", displayName(rec.State))
			fmt.Fprintf(out, "Workflow:  %s\n", rec.Workflow)
			fmt.Fprintf(out, "Type:      %s\n", rec.ContentType)
			fmt.Fprintf(out, "Revision:  %d (public %d)\n", rec.Revision, rec.PublicRevision)
			if rec.RevisionLocked {
				fmt.Fprintln(out, "Revision is locked")
			}
			if rec.CheckedOutBy != "" {
				fmt.Fprintf(out, "Checked out by %s\n", rec.CheckedOutBy)
			}
			if rec.PublishStartDate != nil {
				fmt.Fprintf(out, "Scheduled publish: %s\n", rec.PublishStartDate.Format(time.RFC3339))
			}

			printRelated(cmd, st, "Local assets", rec.ID, store.RelLocal)
			printRelated(cmd, st, "Shared assets", rec.ID, store.RelShared)
			printRelated(cmd, st, "Linked assets", rec.ID, store.RelLinked)

			if node, err := st.NavigationNode(cmd.Context(), rec.ID); err == nil && node != "" {
				fmt.Fprintf(out, "Navigation node: %s\n", node)
			}
			if tmpl, err := st.TemplateOf(cmd.Context(), rec.ID); err == nil && tmpl != "" {
				fmt.Fprintf(out, "Template: %s\n", tmpl)
			}
			sites, err := st.AllowedSites(cmd.Context(), rec.ID)
			if err == nil {
				if sites == nil {
					fmt.Fprintln(out, "Sites: unrestricted")
				} else {
					fmt.Fprintf(out, "Sites: %s\n", strings.Join(sites, ", "))
				}
			}

			printTriggers(cmd, ctx, rec)
			printHistory(cmd, st, rec.ID)
			return nil
		},
	}
}

func printHistory(cmd *cobra.Command, st *store.Store, id string) {
	history, err := st.TransitionHistory(cmd.Context(), id)
	if err != nil || len(history) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "History:")
	for _, entry := range history {
		fmt.Fprintf(out, "  %s: %s -> %s by %s", entry.Trigger,
			displayName(entry.FromState), displayName(entry.ToState), entry.Actor)
		if entry.Comment != "" {
			fmt.Fprintf(out, " (%s)", entry.Comment)
		}
		fmt.Fprintln(out)
	}
}

func printRelated(cmd *cobra.Command, st *store.Store, label, ownerID, kind string) {
	var ids []string
	var err error
	switch kind {
	case store.RelLocal:
		ids, err = st.LocalAssets(cmd.Context(), ownerID)
	case store.RelShared:
		ids, err = st.SharedAssets(cmd.Context(), ownerID)
	case store.RelLinked:
		ids, err = st.LinkedAssets(cmd.Context(), ownerID)
	}
	if err != nil || len(ids) == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", label, strings.Join(ids, ", "))
}

func printTriggers(cmd *cobra.Command, ctx *commandContext, rec *store.Record) {
	def, ok := ctx.registry.Definition(rec.Workflow)
	if !ok {
		return
	}
	state, ok := def.State(workflow.StateName(rec.State))
	if !ok {
		return
	}
	triggers := state.AvailableTriggers(ctx.identity().Roles)
	if len(triggers) == 0 {
		return
	}
	names := make([]string, 0, len(triggers))
	for _, trigger := range triggers {
		names = append(names, string(trigger))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Triggers: %s\n", strings.Join(names, ", "))
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var state string
	var workflowName string
	var contentType string
	var publishAt string

	cmd := &cobra.Command{
		Use:   "add <item-id>",
		Short: "Add a content item to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}

			item := store.NewItem{
				ID:          strings.TrimSpace(args[0]),
				State:       strings.TrimSpace(state),
				Workflow:    strings.TrimSpace(workflowName),
				ContentType: strings.TrimSpace(contentType),
			}
			if trimmed := strings.TrimSpace(publishAt); trimmed != "" {
				parsed, err := time.Parse(time.RFC3339, trimmed)
				if err != nil {
					return fmt.Errorf("parse --publish-at: %w", err)
				}
				item.PublishStartDate = &parsed
			}
			if _, ok := ctx.registry.Definition(item.Workflow); !ok {
				return fmt.Errorf("unknown workflow %q (known: %s)", item.Workflow, strings.Join(ctx.registry.Names(), ", "))
			}

			rec, err := st.AddItem(cmd.Context(), item)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s, %s)\n", rec.ID, rec.ContentType, displayName(rec.State))
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", string(workflow.StateDraft), "Initial workflow state")
	cmd.Flags().StringVar(&workflowName, "workflow", workflow.DefaultWorkflowName, "Workflow the item belongs to")
	cmd.Flags().StringVar(&contentType, "type", cms.ContentTypePage, "Content type (page, asset, folder, ...)")
	cmd.Flags().StringVar(&publishAt, "publish-at", "", "Scheduled publish date (RFC 3339)")
	return cmd
}

func newLinkCommand(ctx *commandContext) *cobra.Command {
	linkCmd := &cobra.Command{
		Use:   "link",
		Short: "Manage item relationships",
	}

	linkCmd.AddCommand(newLinkAssetCommand(ctx))
	linkCmd.AddCommand(newLinkNavCommand(ctx))
	linkCmd.AddCommand(newLinkTemplateCommand(ctx))
	linkCmd.AddCommand(newLinkSitesCommand(ctx))

	return linkCmd
}

func newLinkAssetCommand(ctx *commandContext) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "asset <owner-id> <asset-id>",
		Short: "Link an asset to an owning item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			if err := st.Link(cmd.Context(), args[0], args[1], strings.TrimSpace(kind)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linked %s -> %s (%s)\n", args[0], args[1], kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", store.RelShared, "Relationship kind: local, shared, or linked")
	return cmd
}

func newLinkNavCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "nav <item-id> <node-id>",
		Short: "Attach a navigation node to an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			if err := st.SetNavigationNode(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Navigation node for %s is now %s\n", args[0], args[1])
			return nil
		},
	}
}

func newLinkTemplateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "template <page-id> <template-id>",
		Short: "Record the template a page renders with",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			if err := st.SetTemplate(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template for %s is now %s\n", args[0], args[1])
			return nil
		},
	}
}

func newLinkSitesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sites <item-id> [site...]",
		Short: "Restrict an item to specific sites (no sites clears the restriction)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			if err := st.RestrictSites(cmd.Context(), args[0], args[1:]...); err != nil {
				return err
			}
			if len(args) == 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now unrestricted\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now restricted to %s\n", args[0], strings.Join(args[1:], ", "))
			return nil
		},
	}
}
