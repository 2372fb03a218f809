package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/brigade/internal/scheduler"
	"github.com/me/brigade/pkg/model"
)

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place orders",
	}
	cmd.AddCommand(newOrderPlaceCmd())
	cmd.AddCommand(newOrderListCmd())
	return cmd
}

func newOrderListCmd() *cobra.Command {
	var (
		state string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			suffix := "/orders/"
			if len(q) > 0 {
				suffix += "?" + q.Encode()
			}
			return listOrders(cmd.OutOrStdout(), suffix, "No orders.")
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Only ACTIVE or COMPLETED orders")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of orders")
	return cmd
}

func newOrderPlaceCmd() *cobra.Command {
	var (
		table     int
		quantity  int
		vip       bool
		allergies []string
	)
	cmd := &cobra.Command{
		Use:   "place <dish_id>",
		Short: "Place an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/orders/")
			if err != nil {
				return err
			}
			resp, err := client.Post(path, model.OrderRequest{
				DishID:      args[0],
				TableNumber: table,
				Quantity:    quantity,
				VIP:         vip,
				Allergies:   allergies,
			})
			if err != nil {
				return fmt.Errorf("place order: %w", err)
			}
			var receipt model.OrderReceipt
			if err := decodeData(resp, &receipt); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			t := receipt.Task
			fmt.Fprintf(out, "Order placed: %s\n", t.ID)
			fmt.Fprintf(out, "  Dish:     %s x%d (table %d)\n", t.DishName, t.Quantity, t.TableNumber)
			fmt.Fprintf(out, "  Start at: %s, %s (%d min prep)\n", t.StartAt.Local().Format("15:04"), ago(t.StartAt), t.PrepMinutes)
			if t.VIP {
				fmt.Fprintln(out, "  "+vipStyle.Render("VIP"))
			}
			if len(receipt.AllergenConflicts) > 0 {
				fmt.Fprintln(out, "  "+alertStyle.Render("Allergy alert: "+joinList(receipt.AllergenConflicts)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&table, "table", "t", 0, "Table number")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "Quantity")
	cmd.Flags().BoolVar(&vip, "vip", false, "Serve ahead of regular orders")
	cmd.Flags().StringSliceVarP(&allergies, "allergy", "a", nil, "Customer allergy (repeatable)")
	return cmd
}

func newNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the most urgent active order",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/orders/next")
			if err != nil {
				return err
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("next order: %w", err)
			}
			out := cmd.OutOrStdout()
			if resp.NoContent {
				fmt.Fprintln(out, "Kitchen is idle.")
				return nil
			}
			var t model.Task
			if err := decodeData(resp, &t); err != nil {
				return err
			}
			renderTasks(out, []model.Task{t})
			return nil
		},
	}
}

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <order_id>",
		Short: "Mark an order cooked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/orders/" + args[0] + "/complete")
			if err != nil {
				return err
			}
			resp, err := client.Post(path, nil)
			if err != nil {
				return fmt.Errorf("complete order: %w", err)
			}
			var t model.Task
			if err := decodeData(resp, &t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed %s: %s for table %d\n", t.ID, t.DishName, t.TableNumber)
			return nil
		},
	}
}

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Return the most recently completed order to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/orders/undo")
			if err != nil {
				return err
			}
			resp, err := client.Post(path, nil)
			if err != nil {
				return fmt.Errorf("undo: %w", err)
			}
			var t model.Task
			if err := decodeData(resp, &t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s: %s for table %d\n", t.ID, t.DishName, t.TableNumber)
			return nil
		},
	}
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <order_id>",
		Short: "Remove an order from the queue and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/orders/" + args[0] + "/")
			if err != nil {
				return err
			}
			if _, err := client.Delete(path); err != nil {
				return fmt.Errorf("purge order: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %s\n", args[0])
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth and completions",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wsPath("/orders/stats")
			if err != nil {
				return err
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			var st scheduler.LaneStats
			if err := decodeData(resp, &st); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workspace: %s\n", st.WorkspaceID)
			fmt.Fprintf(out, "  Active:    %d (%d VIP)\n", st.Active, st.ActiveVIP)
			fmt.Fprintf(out, "  Completed: %d\n", st.Completed)
			return nil
		},
	}
}
