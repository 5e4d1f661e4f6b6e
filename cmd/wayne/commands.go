package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	apiclient "github.com/wayneindustries/resourcemgmt/pkg/api/client"
)

func newResourceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resource",
		Aliases: []string{"resources"},
		Short:   "Resource management",
	}
	cmd.AddCommand(newResourceListCommand(), newResourceCreateCommand(), newResourceAssignCommand(), newResourceDeleteCommand(), newResourceImportCommand())
	return cmd
}

func newResourceListCommand() *cobra.Command {
	var q apiclient.ResourceQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			resources, err := client.ListResources(ctx, token, q)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tSERIAL\tASSIGNEE")
			for _, r := range resources {
				assignee := "-"
				if r.AssignedTo != nil {
					assignee = *r.AssignedTo
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Type, r.Status, r.SerialNumber, assignee)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&q.Type, "type", "", "Filter by type")
	cmd.Flags().StringVar(&q.Status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&q.AssignedTo, "assigned-to", "", "Filter by assignee profile id")
	cmd.Flags().StringVar(&q.Search, "search", "", "Match name, serial or location")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Maximum number of resources")
	return cmd
}

func newResourceCreateCommand() *cobra.Command {
	var input apiclient.CreateResourceInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a resource",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(input.Name) == "" {
				return errors.New("--name is required")
			}
			if strings.TrimSpace(input.Type) == "" {
				return errors.New("--type is required")
			}
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			res, err := client.CreateResource(ctx, token, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resource created: %s (%s)\n", res.ID, res.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "Resource name")
	cmd.Flags().StringVar(&input.Type, "type", "", "equipment|vehicle|device|facility|other")
	cmd.Flags().StringVar(&input.Status, "status", "", "Initial status (default available)")
	cmd.Flags().StringVar(&input.Location, "location", "", "Location")
	cmd.Flags().StringVar(&input.SerialNumber, "serial", "", "Serial number")
	cmd.Flags().StringVar(&input.Description, "description", "", "Description")
	return cmd
}

func newResourceAssignCommand() *cobra.Command {
	var profileID string
	cmd := &cobra.Command{
		Use:   "assign <resource-id>",
		Short: "Assign a resource, or return it to the pool without --to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			res, err := client.AssignResource(ctx, token, args[0], profileID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resource %s status=%s\n", res.ID, res.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&profileID, "to", "", "Assignee profile id")
	return cmd
}

func newResourceDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource-id>",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if err := client.DeleteResource(ctx, token, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "resource deleted")
			return nil
		},
	}
}

func newAlertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alert",
		Aliases: []string{"alerts"},
		Short:   "Alert operations",
	}

	var status, severity string
	list := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			alerts, err := client.ListAlerts(ctx, token, status, severity)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSEVERITY\tSTATUS\tTITLE\tCREATED")
			for _, a := range alerts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Severity, a.Status, a.Title, a.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&status, "status", "", "open|acknowledged|resolved")
	list.Flags().StringVar(&severity, "severity", "", "low|medium|high|critical")

	var input apiclient.CreateAlertInput
	var resourceID string
	raise := &cobra.Command{
		Use:   "raise",
		Short: "Raise an alert",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(input.Title) == "" {
				return errors.New("--title is required")
			}
			if strings.TrimSpace(resourceID) != "" {
				input.ResourceID = &resourceID
			}
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			a, err := client.CreateAlert(ctx, token, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "alert raised: %s\n", a.ID)
			return nil
		},
	}
	raise.Flags().StringVar(&input.Title, "title", "", "Alert title")
	raise.Flags().StringVar(&input.Message, "message", "", "Alert message")
	raise.Flags().StringVar(&input.Severity, "severity", "medium", "low|medium|high|critical")
	raise.Flags().StringVar(&resourceID, "resource", "", "Related resource id")

	cmd.AddCommand(list, raise, newAlertActionCommand("ack", "Acknowledge an alert"), newAlertActionCommand("resolve", "Resolve an alert"))
	return cmd
}

func newAlertActionCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <alert-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			var a apiclient.Alert
			if name == "ack" {
				a, err = client.AcknowledgeAlert(ctx, token, args[0])
			} else {
				a, err = client.ResolveAlert(ctx, token, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "alert %s status=%s\n", a.ID, a.Status)
			return nil
		},
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the dashboard summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			stats, err := client.Stats(ctx, token)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "profiles: %d\naccess events (24h): %d\n", stats.ProfileCount, stats.AccessLogsLast24h)
			printCounts(cmd, "resources by type", stats.ResourcesByType)
			printCounts(cmd, "resources by status", stats.ResourcesByStatus)
			printCounts(cmd, "open alerts by severity", stats.OpenAlertsBySeverity)
			return nil
		},
	}
}

func printCounts(cmd *cobra.Command, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-14s %d\n", k, counts[k])
	}
}

func newDemoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Demo account tooling",
	}
	var (
		password string
		seed     bool
	)
	provision := &cobra.Command{
		Use:   "provision",
		Short: "Create the admin, manager and employee demo accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(password, "Demo account password: ")
			if err != nil {
				return err
			}
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			result, err := client.ProvisionDemoAccounts(ctx, token, secret, seed)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tROLE\tSTATUS\tUSER ID")
			for _, acct := range result.Accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", acct.Email, acct.Role, acct.Status, acct.UserID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if seed {
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d resources and %d alerts\n", result.SeededResources, result.SeededAlerts)
			}
			return nil
		},
	}
	provision.Flags().StringVar(&password, "password", "", "Password for every demo account (prompted when omitted)")
	provision.Flags().BoolVar(&seed, "seed", false, "Also create sample resources and an alert")
	cmd.AddCommand(provision)
	return cmd
}
