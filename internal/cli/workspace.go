package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/brigade/pkg/model"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces (kitchens)",
	}
	cmd.AddCommand(newWorkspaceCreateCmd(), newWorkspaceListCmd())
	return cmd
}

func newWorkspaceCreateCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/workspaces/", map[string]any{
				"name":        args[0],
				"admin_email": email,
			})
			if err != nil {
				return fmt.Errorf("create workspace: %w", err)
			}
			var ws model.Workspace
			if err := decodeData(resp, &ws); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workspace created: %s (%s)\n", ws.ID, ws.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin contact email")
	return cmd
}

func newWorkspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/workspaces/")
			if err != nil {
				return fmt.Errorf("list workspaces: %w", err)
			}
			var list []model.Workspace
			if err := decodeData(resp, &list); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No workspaces found.")
				return nil
			}
			fmt.Fprintf(out, "%-40s  %-24s  %s\n", "ID", "NAME", "CREATED")
			for _, ws := range list {
				fmt.Fprintf(out, "%-40s  %-24s  %s\n", ws.ID, ws.Name, ago(ws.CreatedAt))
			}
			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(list), resp.Pagination.Total)
			}
			return nil
		},
	}
}
