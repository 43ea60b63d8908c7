package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/teashelf/internal/collection"
	"github.com/mesh-intelligence/teashelf/pkg/types"
)

func newLowStockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "lowstock",
		Aliases: []string{"shopping"},
		Short:   "List teas at or below their low-stock threshold",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				teas, err := s.svc.ShoppingList()
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), teas)
				}
				out := cmd.OutOrStdout()
				if len(teas) == 0 {
					fmt.Fprintln(out, "Nothing is running low.")
					return nil
				}
				t := newTable(out)
				t.AppendHeader(table.Row{"ID", "Name", "Brand", "Stock", "Threshold"})
				for i := range teas {
					tea := &teas[i]
					t.AppendRow(table.Row{
						tea.ID, tea.Name, tea.Brand, formatStock(tea),
						formatNumber(*tea.LowStockThreshold) + " " + string(tea.Unit),
					})
				}
				t.Render()
				return nil
			})
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				prefs, err := s.prefs.Load()
				if err != nil {
					return err
				}
				o, err := s.svc.Overview(prefs.FavoriteTeaIDs)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), o)
				}
				renderOverview(cmd.OutOrStdout(), o)
				return nil
			})
		},
	}
}

func renderOverview(w io.Writer, o collection.Overview) {
	fmt.Fprintf(w, "Teas: %d  Low stock: %d  Favorites: %d\n", o.Total, o.LowStock, o.Favorites)
	if len(o.ByType) == 0 {
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Type", "Teas"})
	for _, tt := range types.TeaTypes {
		if n := o.ByType[tt]; n > 0 {
			t.AppendRow(table.Row{tt, n})
		}
	}
	t.Render()
}

func newInsightsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Suggest what to brew next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				in, err := s.svc.Insights()
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), in)
				}
				out := cmd.OutOrStdout()
				renderInsight(out, "Never brewed", in.Unbrewed)
				renderInsight(out, "Not brewed in 30 days", in.Forgotten)
				renderInsight(out, "Highly rated", in.HighlyRated)
				return nil
			})
		},
	}
}

func renderInsight(w io.Writer, title string, teas []types.Tea) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(teas) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, t := range teas {
		fmt.Fprintf(w, "  %s by %s (%s, rated %s)\n", t.Name, t.Brand, t.Type, formatNumber(t.Rating))
	}
}
