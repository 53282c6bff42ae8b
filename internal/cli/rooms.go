package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dkeye/rendezvous/internal/client"
	"github.com/dkeye/rendezvous/internal/core"
	"github.com/spf13/cobra"
)

var adminToken string

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List live rooms (admin API)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL, client.WithAdminToken(adminToken))
		rooms, err := c.Rooms(cmd.Context())
		if err != nil {
			return fmt.Errorf("list rooms: %w", err)
		}
		stats, err := c.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), RoomsView(rooms, time.Now()))
		fmt.Fprintln(cmd.OutOrStdout(), MutedStyle.Render(fmt.Sprintf("%d rooms, %d waiting", stats.Rooms, stats.Waiting)))
		return nil
	},
}

func init() {
	roomsCmd.Flags().StringVarP(&adminToken, "token", "t", "", "admin bearer token")
	rootCmd.AddCommand(roomsCmd)
}

// RoomsView renders rooms as a table, ages relative to now.
func RoomsView(rooms []core.RoomInfo, now time.Time) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No rooms")
	}

	rows := make([][]string, 0, len(rooms))
	for _, r := range rooms {
		names := make([]string, len(r.Participants))
		for i, p := range r.Participants {
			names[i] = string(p)
		}
		rows = append(rows, []string{
			string(r.ID),
			strings.Join(names, ", "),
			fmt.Sprintf("%d", r.Messages),
			now.Sub(r.CreatedAt).Truncate(time.Second).String(),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Room", "Participants", "Messages", "Age").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}
