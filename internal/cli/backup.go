package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// backupKeyLayout formats backup keys. Restore parses the same layout.
const backupKeyLayout = time.RFC3339Nano

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage the rolling backup history",
		Long: fmt.Sprintf("teashelf keeps the newest %d snapshots of the collection. Older ones are\n"+
			"discarded as new ones are taken.", types.MaxBackups),
	}
	cmd.AddCommand(
		newBackupNowCmd(a),
		newBackupListCmd(a),
		newBackupStatusCmd(a),
		newBackupRestoreCmd(a),
	)
	return cmd
}

func newBackupNowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Take a snapshot of the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var info types.BackupInfo
			err := a.withSession(cmd.Context(), func(s *session) error {
				var err error
				info, err = s.backupNow(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup %s (%d teas)\n", info.TakenAt.Format(backupKeyLayout), info.Count)
			return nil
		},
	}
}

func newBackupListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List retained snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				if err := s.requireDurable(); err != nil {
					return err
				}
				infos, err := s.store.ListBackups(cmd.Context())
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), infos)
				}
				renderBackups(cmd.OutOrStdout(), infos)
				return nil
			})
		},
	}
}

// backupStatusView is the JSON shape of backup status.
type backupStatusView struct {
	Retained   int        `json:"retained"`
	Capacity   int        `json:"capacity"`
	Interval   string     `json:"interval"`
	LastBackup *time.Time `json:"lastBackup,omitempty"`
	NextDue    *time.Time `json:"nextDue,omitempty"`
}

func newBackupStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the newest snapshot and when the next one is due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				if err := s.requireDurable(); err != nil {
					return err
				}
				infos, err := s.store.ListBackups(cmd.Context())
				if err != nil {
					return err
				}
				view := backupStatusView{
					Retained: len(infos),
					Capacity: types.MaxBackups,
					Interval: a.settings.BackupInterval.String(),
				}
				if len(infos) > 0 {
					last := infos[0].TakenAt
					next := last.Add(a.settings.BackupInterval)
					view.LastBackup, view.NextDue = &last, &next
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), view)
				}
				out := cmd.OutOrStdout()
				if view.LastBackup == nil {
					fmt.Fprintf(out, "No backups yet (interval %s)\n", view.Interval)
					return nil
				}
				fmt.Fprintf(out, "Last backup: %s (%d of %d retained)\nNext due:    %s\n",
					view.LastBackup.Format(backupKeyLayout), view.Retained, view.Capacity,
					view.NextDue.Format(backupKeyLayout))
				return nil
			})
		},
	}
}

func newBackupRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [taken-at]",
		Short: "Replace the collection with a snapshot",
		Long: "Restore replaces the whole collection with the newest snapshot, or with the\n" +
			"snapshot taken at the given time as shown by \"backup list\".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var at time.Time
			if len(args) == 1 {
				var err error
				if at, err = time.Parse(backupKeyLayout, args[0]); err != nil {
					return userError(fmt.Errorf("invalid backup time %q: %w", args[0], err))
				}
			}

			var info types.BackupInfo
			err := a.withSession(cmd.Context(), func(s *session) error {
				if err := s.requireDurable(); err != nil {
					return err
				}
				if at.IsZero() {
					var err error
					info, err = s.svc.RestoreLatest(cmd.Context())
					return err
				}
				n, err := s.svc.RestoreBackup(cmd.Context(), at)
				info = types.BackupInfo{TakenAt: at, Count: n}
				return err
			})
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d teas from %s\n", info.Count, info.TakenAt.Format(backupKeyLayout))
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Take scheduled backups until interrupted",
		Long: "Watch snapshots the collection immediately and then once per interval\n" +
			"(backup_interval in config.yaml) until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval == 0 {
				interval = a.settings.BackupInterval
			}
			return a.withSession(cmd.Context(), func(s *session) error {
				sched, err := s.scheduler(interval)
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				if duration > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, duration)
					defer cancel()
				}

				if err := sched.Start(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Backing up every %s; press Ctrl-C to stop\n", sched.Interval())
				<-ctx.Done()
				sched.Stop()

				view := newStatusView(sched.Status())
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), view)
				}
				renderStatus(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between snapshots (default from config)")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: until interrupted)")
	return cmd
}
