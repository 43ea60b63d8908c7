package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mesh-intelligence/teashelf/internal/collection"
	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// teaFlags are the editable fields shared by add and update.
type teaFlags struct {
	id        string
	name      string
	brand     string
	teaType   string
	form      string
	amount    float64
	unit      string
	rating    float64
	notes     string
	temp      float64
	tempUnit  string
	steep     int
	origin    string
	caffeine  string
	threshold float64
	flavors   []string
}

func (f *teaFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "tea name")
	fs.StringVar(&f.brand, "brand", "", "brand or vendor")
	fs.StringVar(&f.teaType, "type", "", "tea type: "+enumList(types.TeaTypes))
	fs.StringVar(&f.form, "form", string(types.TeaFormLooseLeaf), "form: "+enumList(types.TeaForms))
	fs.Float64Var(&f.amount, "amount", 0, "amount in stock")
	fs.StringVar(&f.unit, "unit", string(types.UnitGrams), "stock unit: "+enumList(types.Units))
	fs.Float64Var(&f.rating, "rating", 0, "rating from 0 to 5 in steps of 0.5")
	fs.StringVar(&f.notes, "notes", "", "tasting notes")
	fs.Float64Var(&f.temp, "temp", 95, "brewing temperature")
	fs.StringVar(&f.tempUnit, "temp-unit", string(types.Celsius), "temperature unit: C or F")
	fs.IntVar(&f.steep, "steep", 0, "steep time in seconds (default from preferences for the type)")
	fs.StringVar(&f.origin, "origin", "", "country or region of origin")
	fs.StringVar(&f.caffeine, "caffeine", "", "caffeine level: "+enumList(types.CaffeineLevels))
	fs.Float64Var(&f.threshold, "threshold", 0, "low-stock threshold; 0 disables the alert")
	fs.StringSliceVar(&f.flavors, "flavors", nil, "flavor tags: "+enumList(types.FlavorProfiles))
}

// apply copies every flag that is set on fs into tea. When all is true,
// flags with defaults are applied too.
func (f *teaFlags) apply(fs *pflag.FlagSet, tea *types.Tea, all bool) error {
	set := func(name string) bool { return all || fs.Changed(name) }

	if set("name") {
		tea.Name = f.name
	}
	if set("brand") {
		tea.Brand = f.brand
	}
	if set("type") {
		v, err := parseEnum("type", f.teaType, types.TeaTypes)
		if err != nil {
			return err
		}
		tea.Type = v
	}
	if set("form") {
		v, err := parseEnum("form", f.form, types.TeaForms)
		if err != nil {
			return err
		}
		tea.Form = v
	}
	if set("amount") {
		tea.Amount = f.amount
	}
	if set("unit") {
		v, err := parseEnum("unit", f.unit, types.Units)
		if err != nil {
			return err
		}
		tea.Unit = v
	}
	if set("rating") {
		tea.Rating = f.rating
	}
	if set("notes") {
		tea.TastingNotes = f.notes
	}
	if set("temp") {
		tea.BrewingInstructions.Temperature = f.temp
	}
	if set("temp-unit") {
		v, err := parseEnum("temp-unit", f.tempUnit, types.TemperatureUnits)
		if err != nil {
			return err
		}
		tea.BrewingInstructions.TempUnit = v
	}
	if fs.Changed("steep") {
		tea.BrewingInstructions.SteepTimeInSeconds = f.steep
	}
	if fs.Changed("origin") {
		tea.Origin = f.origin
	}
	if fs.Changed("caffeine") {
		if f.caffeine == "" {
			tea.CaffeineLevel = ""
		} else {
			v, err := parseEnum("caffeine", f.caffeine, types.CaffeineLevels)
			if err != nil {
				return err
			}
			tea.CaffeineLevel = v
		}
	}
	if fs.Changed("threshold") {
		if f.threshold > 0 {
			tea.LowStockThreshold = types.Float(f.threshold)
		} else {
			tea.LowStockThreshold = nil
		}
	}
	if fs.Changed("flavors") {
		tags, err := parseFlavors(f.flavors)
		if err != nil {
			return err
		}
		tea.FlavorTags = tags
	}
	return nil
}

func newAddCmd(a *app) *cobra.Command {
	var f teaFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a tea to the shelf",
		Example: `  teashelf add --name "Dragon Well" --brand "West Lake" --type Green --amount 50 --rating 4.5
  teashelf add --name "Earl Grey" --brand Twinings --type Black --form Bagged --unit bags --amount 20 --threshold 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var created types.Tea
			err := a.withSession(cmd.Context(), func(s *session) error {
				tea := types.Tea{ID: f.id}
				if err := f.apply(cmd.Flags(), &tea, true); err != nil {
					return userError(err)
				}
				if !cmd.Flags().Changed("steep") {
					prefs, err := s.prefs.Load()
					if err != nil {
						return err
					}
					tea.BrewingInstructions.SteepTimeInSeconds = prefs.DefaultBrewingTimes[tea.Type]
				}
				var err error
				created, err = s.svc.Create(tea)
				return err
			})
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVar(&f.id, "id", "", "explicit id (default: generated)")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one tea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				tea, err := s.svc.Get(args[0])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), tea)
				}
				prefs, err := s.prefs.Load()
				if err != nil {
					return err
				}
				renderTea(cmd.OutOrStdout(), tea, prefs)
				return nil
			})
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		search    string
		teaTypes  []string
		flavors   []string
		minRating float64
		lowStock  bool
		favorites bool
		sortKey   string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List teas with optional filters",
		Example: `  teashelf list --type Green --type Oolong --sort rating
  teashelf list --search earl --low-stock`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := collection.Query{Text: search, MinRating: minRating, LowStock: lowStock}
			for _, t := range teaTypes {
				v, err := parseEnum("type", t, types.TeaTypes)
				if err != nil {
					return userError(err)
				}
				q.Types = append(q.Types, v)
			}
			tags, err := parseFlavors(flavors)
			if err != nil {
				return userError(err)
			}
			q.Flavors = tags
			if q.Sort, err = collection.ParseSortKey(sortKey); err != nil {
				return userError(err)
			}

			return a.withSession(cmd.Context(), func(s *session) error {
				teas, err := s.svc.Find(q)
				if err != nil {
					return err
				}
				prefs, err := s.prefs.Load()
				if err != nil {
					return err
				}
				if favorites {
					kept := teas[:0]
					for _, t := range teas {
						if prefs.IsFavorite(t.ID) {
							kept = append(kept, t)
						}
					}
					teas = kept
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), teas)
				}
				renderTeas(cmd.OutOrStdout(), teas, prefs)
				return nil
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&search, "search", "", "match name or brand (case-insensitive)")
	fs.StringSliceVar(&teaTypes, "type", nil, "keep these tea types")
	fs.StringSliceVar(&flavors, "flavor", nil, "keep teas with all of these flavor tags")
	fs.Float64Var(&minRating, "min-rating", 0, "keep teas rated at least this")
	fs.BoolVar(&lowStock, "low-stock", false, "keep only low-stock teas")
	fs.BoolVar(&favorites, "favorites", false, "keep only favorite teas")
	fs.StringVar(&sortKey, "sort", "", "sort by: name, rating, stock, recent")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var f teaFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a tea",
		Long:  "Update changes only the fields whose flags are given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var updated types.Tea
			err := a.withSession(cmd.Context(), func(s *session) error {
				tea, err := s.svc.Get(args[0])
				if err != nil {
					return err
				}
				if err := f.apply(cmd.Flags(), &tea, false); err != nil {
					return userError(err)
				}
				updated, err = s.svc.Update(tea)
				return err
			})
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), updated)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", updated.Name, updated.ID)
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a tea",
		Long:    "Delete removes a tea and drops it from favorites. Deleting an unknown id is not an error.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed bool
			err := a.withSession(cmd.Context(), func(s *session) error {
				removed = s.svc.Delete(args[0])
				return nil
			})
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": args[0], "deleted": removed})
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No tea with id %s\n", args[0])
			}
			return nil
		},
	}
}

func newBrewCmd(a *app) *cobra.Command {
	var amount float64
	cmd := &cobra.Command{
		Use:   "brew <id>",
		Short: "Record a brew and take it from stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tea types.Tea
			err := a.withSession(cmd.Context(), func(s *session) error {
				var err error
				tea, err = s.svc.RecordBrew(args[0], amount)
				if errors.Is(err, types.ErrInvalidAmount) {
					return userError(err)
				}
				return err
			})
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), tea)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Brewed %s: %s left, %d brews\n",
				tea.Name, formatStock(&tea), tea.TotalBrewCount)
			if tea.IsLowStock() {
				fmt.Fprintln(cmd.OutOrStdout(), "Running low; time to restock.")
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 1, "amount used, in the tea's stock unit")
	return cmd
}

// parseEnum matches s against variants case-insensitively.
func parseEnum[T ~string](flag, s string, variants []T) (T, error) {
	for _, v := range variants {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid --%s %q (valid: %s)", flag, s, enumList(variants))
}

func parseFlavors(names []string) ([]types.FlavorProfile, error) {
	if len(names) == 0 {
		return nil, nil
	}
	tags := make([]types.FlavorProfile, 0, len(names))
	for _, n := range names {
		v, err := parseEnum("flavor", n, types.FlavorProfiles)
		if err != nil {
			return nil, err
		}
		tags = append(tags, v)
	}
	return tags, nil
}

func enumList[T ~string](variants []T) string {
	parts := make([]string, len(variants))
	for i, v := range variants {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
