package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/teashelf/internal/preferences"
	"github.com/mesh-intelligence/teashelf/pkg/types"
)

func newFavoriteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "favorite <id>",
		Aliases: []string{"fav"},
		Short:   "Toggle a tea in favorites",
		Long:    "Favorite adds a tea to favorites, or removes it if it is already one.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			err := a.withSession(cmd.Context(), func(s *session) error {
				prefs, err := s.prefs.Load()
				if err != nil {
					return err
				}
				if !prefs.IsFavorite(args[0]) {
					if _, err := s.svc.Get(args[0]); err != nil {
						return err
					}
				}
				on, err = s.prefs.ToggleFavorite(args[0])
				return err
			})
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": args[0], "favorite": on})
			}
			if on {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to favorites\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from favorites\n", args[0])
			}
			return nil
		},
	}
}

func newPrefsCmd(a *app) *cobra.Command {
	var (
		theme     string
		layout    string
		brewTimes []string
	)
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change preferences",
		Example: `  teashelf prefs
  teashelf prefs --theme dark --brew-time Green=150 --brew-time Oolong=200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			edits, err := parseBrewTimes(brewTimes)
			if err != nil {
				return userError(err)
			}
			changed := cmd.Flags().Changed("theme") || cmd.Flags().Changed("layout") || len(edits) > 0

			var prefs types.UserPreferences
			err = a.withSession(cmd.Context(), func(s *session) error {
				if !changed {
					var err error
					prefs, err = s.prefs.Load()
					return err
				}
				var err error
				prefs, err = s.prefs.Update(func(p *types.UserPreferences) error {
					if cmd.Flags().Changed("theme") {
						if err := preferences.ParseTheme(theme); err != nil {
							return err
						}
						p.Theme = types.Theme(theme)
					}
					if cmd.Flags().Changed("layout") {
						if err := preferences.ParseLayout(layout); err != nil {
							return err
						}
						p.DashboardLayout = types.DashboardLayout(layout)
					}
					for _, e := range edits {
						if err := preferences.SetBrewingTime(p, e.teaType, e.seconds); err != nil {
							return err
						}
					}
					return nil
				})
				if err != nil {
					return userError(err)
				}
				return nil
			})
			if err != nil {
				return err
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), prefs)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Theme: %s  Layout: %s  Favorites: %d\n",
				prefs.Theme, prefs.DashboardLayout, len(prefs.FavoriteTeaIDs))
			t := newTable(out)
			t.AppendHeader(table.Row{"Type", "Default steep (s)"})
			for _, tt := range types.TeaTypes {
				t.AppendRow(table.Row{tt, prefs.DefaultBrewingTimes[tt]})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "color theme: light or dark")
	cmd.Flags().StringVar(&layout, "layout", "", "dashboard layout: grid or list")
	cmd.Flags().StringArrayVar(&brewTimes, "brew-time", nil, "default steep time as Type=seconds (repeatable)")
	return cmd
}

type brewTimeEdit struct {
	teaType types.TeaType
	seconds int
}

func parseBrewTimes(args []string) ([]brewTimeEdit, error) {
	edits := make([]brewTimeEdit, 0, len(args))
	for _, arg := range args {
		name, secs, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --brew-time %q (expected Type=seconds)", arg)
		}
		tt, err := parseEnum("brew-time", name, types.TeaTypes)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(secs))
		if err != nil {
			return nil, fmt.Errorf("invalid --brew-time %q: %w", arg, err)
		}
		edits = append(edits, brewTimeEdit{teaType: tt, seconds: n})
	}
	return edits, nil
}
