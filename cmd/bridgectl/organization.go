package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"aibridge.io/internal/auth"
)

func newOrganizationCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "org",
		Aliases: []string{"organization"},
		Short:   "Manage organizations and projects",
	}

	var orgID, orgName string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := commandContext(cmd, flags)
			defer cancel()
			org, err := store.CreateOrganization(ctx, auth.Organization{ID: orgID, Name: orgName})
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(org)
		},
	}
	create.Flags().StringVar(&orgID, "id", "", "organization id (generated when empty)")
	create.Flags().StringVar(&orgName, "name", "", "organization name")
	_ = create.MarkFlagRequired("name")

	var projectOrg, projectID, projectName string
	project := &cobra.Command{
		Use:   "add-project",
		Short: "Create a project under an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := commandContext(cmd, flags)
			defer cancel()
			p, err := store.CreateProject(ctx, auth.Project{ID: projectID, OrganizationID: projectOrg, Name: projectName})
			if err != nil {
				return err
			}
			dropCachedStats(cmd, flags, p.OrganizationID)
			return json.NewEncoder(cmd.OutOrStdout()).Encode(p)
		},
	}
	project.Flags().StringVar(&projectOrg, "org", "", "owning organization id")
	project.Flags().StringVar(&projectID, "id", "", "project id (generated when empty)")
	project.Flags().StringVar(&projectName, "name", "", "project name")
	_ = project.MarkFlagRequired("org")
	_ = project.MarkFlagRequired("name")

	var undo bool
	status := &cobra.Command{
		Use:   "suspend <organization-id>",
		Short: "Suspend an organization (use --undo to reactivate)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := commandContext(cmd, flags)
			defer cancel()
			st := auth.StatusSuspended
			if undo {
				st = auth.StatusActive
			}
			if err := store.SetOrganizationStatus(ctx, args[0], st); err != nil {
				return err
			}
			dropCachedStats(cmd, flags, args[0])
			return nil
		},
	}
	status.Flags().BoolVar(&undo, "undo", false, "reactivate instead of suspending")

	cmd.AddCommand(create, project, status)
	return cmd
}
