package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

// initView is the JSON shape printed by init.
type initView struct {
	ConfigFile string `json:"configFile"`
	DataDir    string `json:"dataDir"`
	Source     string `json:"source"`
	Count      int    `json:"count"`
	Migrated   int    `json:"migrated"`
	Dropped    int    `json:"dropped"`
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize teashelf storage",
		Long: "Create the configuration and data directories, open the store, migrate\n" +
			"any legacy collection, and seed the sample teas on an empty shelf.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var view initView
			err := a.withSession(ctx, func(s *session) error {
				if err := s.requireDurable(); err != nil {
					return err
				}
				view = initView{
					ConfigFile: filepath.Join(a.configDir, configFileExt),
					DataDir:    a.settings.DataDir,
					Source:     string(s.load.Source),
					Count:      s.load.Count,
					Migrated:   s.load.Migrated.Migrated,
					Dropped:    s.load.Migrated.Dropped,
				}
				return nil
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return printJSON(out, view)
			}
			fmt.Fprintf(out, "Config: %s\nData:   %s\n", view.ConfigFile, view.DataDir)
			if view.Migrated > 0 || view.Dropped > 0 {
				fmt.Fprintf(out, "Migrated %d legacy teas (%d dropped)\n", view.Migrated, view.Dropped)
			}
			fmt.Fprintf(out, "Shelf ready with %d teas (%s)\n", view.Count, view.Source)
			return nil
		},
	}
}
