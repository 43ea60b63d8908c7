package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/teashelf/pkg/teashelf"
)

const modulePath = "github.com/mesh-intelligence/teashelf"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the teashelf version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "teashelf v%s\nmodule: %s\n", teashelf.Version, modulePath)
			return nil
		},
	}
}
