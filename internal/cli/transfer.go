package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/teashelf/internal/codec"
	"github.com/mesh-intelligence/teashelf/pkg/types"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		ids    []string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the collection as JSON or CSV",
		Long: "Export writes the collection, or the teas named by --ids, to stdout or to --out.\n" +
			"When --out is a directory the file is named tea-collection-<timestamp>.<format>.",
		Example: `  teashelf export --format csv --out ~/Downloads
  teashelf export --ids 0193...,0194... > picked.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := codec.ParseFormat(format)
			if err != nil {
				return userError(err)
			}
			var selected []string
			if cmd.Flags().Changed("ids") {
				selected = append([]string{}, ids...)
			}

			return a.withSession(cmd.Context(), func(s *session) error {
				if out == "" {
					return s.svc.Export(cmd.OutOrStdout(), f, selected)
				}
				path, err := exportPath(out, f, time.Now())
				if err != nil {
					return err
				}
				file, err := os.Create(path)
				if err != nil {
					return sysError(fmt.Errorf("creating export file: %w", err))
				}
				if err := s.svc.Export(file, f, selected); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return sysError(fmt.Errorf("writing export file: %w", err))
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", string(codec.FormatJSON), "export format: json or csv")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "export only these tea ids")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory (default stdout)")
	return cmd
}

// exportPath returns out itself, or a timestamped file name inside out when
// out is an existing directory.
func exportPath(out string, format codec.Format, now time.Time) (string, error) {
	info, err := os.Stat(out)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(out, codec.Filename(format, now)), nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		return out, nil
	default:
		return "", sysError(fmt.Errorf("checking export path: %w", err))
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Merge teas from a JSON export",
		Long: "Import reads a JSON array of teas and merges it into the collection: records\n" +
			"with a known id replace that tea, others are added. If any record is invalid\n" +
			"nothing is imported and every failure is listed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			return a.withSession(cmd.Context(), func(s *session) error {
				res, err := s.svc.ImportFrom(r)
				if err != nil {
					var ie *types.ImportError
					if errors.As(err, &ie) {
						for _, f := range ie.Failures {
							fmt.Fprintln(cmd.ErrOrStderr(), "  "+f.String())
						}
						return userError(fmt.Errorf("%w: %d invalid records, nothing imported",
							types.ErrInvalidImportData, len(ie.Failures)))
					}
					return userError(err)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d teas (%d added, %d updated)\n",
					res.Added+res.Updated, res.Added, res.Updated)
				return nil
			})
		},
	}
}

func openInput(cmd *cobra.Command, name string) (io.Reader, func(), error) {
	if name == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, userError(fmt.Errorf("opening import file: %w", err))
	}
	return f, func() { _ = f.Close() }, nil
}
