package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/brigade/pkg/model"
)

func newMenuCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Inspect and load the workspace menu",
	}
	cmd.AddCommand(newMenuListCmd(), newMenuSeedCmd(), newMenuUnloadCmd(), newMenuCheckCmd())
	return cmd
}

func newMenuListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List dishes and their current prep estimates",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/dishes/")
			if err != nil {
				return err
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("list dishes: %w", err)
			}
			var dishes []model.Dish
			if err := decodeData(resp, &dishes); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(dishes) == 0 {
				fmt.Fprintln(out, "Menu is empty. Run 'brigade menu seed' to load the demo menu.")
				return nil
			}
			fmt.Fprintf(out, "%-42s  %-22s  %5s  %s\n", "ID", "NAME", "PREP", "INGREDIENTS")
			for _, d := range dishes {
				fmt.Fprintf(out, "%-42s  %-22s  %4dm  %s\n", d.ID, d.Name, d.PrepMinutes, strings.Join(d.Ingredients, ", "))
			}
			return nil
		},
	}
}

func newMenuSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo menu into an empty workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/dishes/seed")
			if err != nil {
				return err
			}
			resp, err := client.Post(path, nil)
			if err != nil {
				return fmt.Errorf("seed menu: %w", err)
			}
			var dishes []model.Dish
			if err := decodeData(resp, &dishes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d dishes.\n", len(dishes))
			return nil
		},
	}
}

func newMenuUnloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unload",
		Short: "Remove every dish from the workspace menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/dishes/")
			if err != nil {
				return err
			}
			resp, err := client.Delete(path)
			if err != nil {
				return fmt.Errorf("unload menu: %w", err)
			}
			var data struct {
				Deleted int `json:"deleted"`
			}
			if err := decodeData(resp, &data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d dishes.\n", data.Deleted)
			return nil
		},
	}
}

func newMenuCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <dish_id> <allergy>...",
		Short: "Check customer allergies against a dish",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/dishes/" + args[0] + "/allergies")
			if err != nil {
				return err
			}
			resp, err := client.Post(path, map[string]any{"allergies": args[1:]})
			if err != nil {
				return fmt.Errorf("check allergies: %w", err)
			}
			var report model.AllergyReport
			if err := decodeData(resp, &report); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", report.DishName, report.Message)
			return nil
		},
	}
}
