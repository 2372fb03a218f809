package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/brigade/pkg/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	vipStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Column widths for the order table.
var columns = []struct {
	title string
	width int
}{
	{"#", 4},
	{"ORDER", 42},
	{"DISH", 22},
	{"TABLE", 6},
	{"QTY", 4},
	{"START", 22},
	{"PLACED", 18},
}

func newQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show active orders, most urgent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listOrders(cmd.OutOrStdout(), "/orders/queue", "No active orders.")
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show completed orders, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listOrders(cmd.OutOrStdout(), "/orders/history", "No completed orders.")
		},
	}
}

func listOrders(out io.Writer, suffix, empty string) error {
	path, err := wsPath(suffix)
	if err != nil {
		return err
	}
	resp, err := client.Get(path)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}
	var tasks []model.Task
	if err := decodeData(resp, &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(out, empty)
		return nil
	}
	renderTasks(out, tasks)
	return nil
}

// renderTasks writes tasks as an aligned table. VIP rows are highlighted.
func renderTasks(out io.Writer, tasks []model.Task) {
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = headerStyle.Width(c.width).Render(c.title)
	}
	fmt.Fprintln(out, strings.Join(cells, " "))

	for i, t := range tasks {
		values := []string{
			humanize.Ordinal(i + 1),
			t.ID,
			t.DishName,
			fmt.Sprint(t.TableNumber),
			fmt.Sprint(t.Quantity),
			ago(t.StartAt),
			ago(t.PlacedAt),
		}
		style := lipgloss.NewStyle()
		if t.VIP {
			style = vipStyle
		}
		for j, v := range values {
			s := style
			if j == len(values)-1 {
				s = dimStyle
			}
			cells[j] = s.Width(columns[j].width).MaxWidth(columns[j].width).Render(v)
		}
		fmt.Fprintln(out, strings.Join(cells, " "))
	}
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}
