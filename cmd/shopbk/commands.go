package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rowjay/shop-backup/internal/app"
	"github.com/rowjay/shop-backup/internal/config"
	"github.com/rowjay/shop-backup/internal/cryptoutil"
	"github.com/rowjay/shop-backup/internal/db"
	"github.com/rowjay/shop-backup/internal/schema"
	"github.com/rowjay/shop-backup/internal/version"
)

func newBackupCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root, overrides)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.context()
			defer cancel()

			res, err := s.app.Backup(ctx, app.BackupOptions{Type: schema.BackupType(s.cfg.Backup.Type), OutputPath: output})
			if err != nil {
				return err
			}
			for _, f := range res.Failures {
				s.log.Warn().Str("kind", f.Kind).Str("name", f.Name).Str("op", f.Op).Err(f.Err).Msg("skipped")
			}
			s.log.Info().
				Str("key", res.Key).
				Int64("size", res.Summary.SizeBytes).
				Int("failures", len(res.Failures)).
				Int("pruned", len(res.Pruned)).
				Msg("backup completed")
			printf("%s\n", res.Key)
			return nil
		},
	}
	cmd.Flags().StringVar(&backupFlags.Type, "type", "", "Backup type (data_only, full)")
	cmd.Flags().StringVar(&backupFlags.Compression, "compression", "", "Entry compression (none, deflate, zstd)")
	cmd.Flags().IntVar(&backupFlags.Level, "level", 0, "Compression level")
	cmd.Flags().BoolVar(&backupFlags.Encrypt, "encrypt", false, "Encrypt the archive")
	cmd.Flags().IntVar(&backupFlags.Parallelism, "parallelism", 0, "Concurrent table reads and object downloads")
	cmd.Flags().IntVar(&backupFlags.Retry, "retry", 0, "Upload retry attempts")
	cmd.Flags().DurationVar(&backupFlags.RetryBackoff, "retry-backoff", 0, "Initial upload retry backoff")
	cmd.Flags().StringVar(&output, "output", "", "Write the archive to this file instead of the repository")
	return cmd
}

func newRestoreCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var opts app.RestoreOptions
	var parallelism int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a backup archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Key == "" && opts.InputPath == "" {
				return fmt.Errorf("--key or --input is required")
			}
			s, err := openSession(root, overrides)
			if err != nil {
				return err
			}
			defer s.Close()
			if parallelism > 0 {
				s.cfg.Restore.Parallelism = parallelism
			}
			ctx, cancel := s.context()
			defer cancel()

			rep, err := s.app.Restore(ctx, opts)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printf("%s\n", rep.Summary())
			for _, f := range rep.Failures {
				printf("  %s\n", f.Error())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Key, "key", "", "Archive key in the repository")
	cmd.Flags().StringVar(&opts.InputPath, "input", "", "Archive file on local disk")
	cmd.Flags().StringSliceVar(&opts.Tables, "tables", nil, "Only restore these tables")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report what would be restored without writing")
	cmd.Flags().BoolVar(&opts.SkipFiles, "skip-files", false, "Do not upload object storage files")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Concurrent object uploads")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the restore report as JSON")
	return cmd
}

func newValidateCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var key, input string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that an archive can be restored",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" && input == "" {
				return fmt.Errorf("--key or --input is required")
			}
			s, err := openSession(root, overrides)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.context()
			defer cancel()

			ins, err := s.app.Validate(ctx, key, input)
			if err != nil {
				return err
			}
			m := ins.Manifest
			printf("archive:  %s\n", ins.Source)
			printf("version:  %s\n", m.Version)
			printf("type:     %s\n", m.Type)
			printf("created:  %s (%s)\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST"), humanize.Time(m.CreatedAt))
			if m.Generator != "" {
				printf("by:       %s\n", m.Generator)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tCLASS\tROWS")
			for _, name := range m.Tables.Names() {
				rows, _ := m.Tables.Get(name)
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, s.app.Registry.Classify(name), humanize.Comma(int64(len(rows))))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printf("files:    %d (%d missing)\n", len(m.Files), len(ins.Missing))
			for _, name := range ins.Missing {
				printf("  missing %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Archive key in the repository")
	cmd.Flags().StringVar(&input, "input", "", "Archive file on local disk")
	return cmd
}

func newCheckCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check configuration and connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root, overrides)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.context()
			defer cancel()
			if err := s.app.Check(ctx); err != nil {
				return err
			}
			s.log.Info().Msg("check succeeded")
			return nil
		},
	}
}

func newListCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archives in the repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root, overrides)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.context()
			defer cancel()

			items, err := s.app.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTYPE\tCREATED\tSIZE\tTABLES\tFILES\tERRORS\tENCRYPTED")
			for _, item := range items {
				typ := item.Type
				if typ == "" {
					typ = "?"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%t\n",
					item.Key, typ, humanize.Time(item.CreatedAt), humanize.Bytes(uint64(item.SizeBytes)),
					item.Tables, item.Files, item.Failures, item.Encrypted)
			}
			return w.Flush()
		},
	}
}

func newMigrateCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the shop schema on a SQLite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root, overrides)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.context()
			defer cancel()
			if err := db.Migrate(ctx, s.store, s.log); err != nil {
				return err
			}
			s.log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func newSettingsCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored backup settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the backup settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root, overrides)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.context()
			defer cancel()
			st, err := s.app.Settings.Load(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}

	var (
		auto      string
		frequency string
		retain    int
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Update the backup settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root, overrides)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.context()
			defer cancel()

			st, err := s.app.Settings.Load(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("auto") {
				v, err := strconv.ParseBool(auto)
				if err != nil {
					return fmt.Errorf("--auto: %w", err)
				}
				st.AutoBackupEnabled = v
			}
			if cmd.Flags().Changed("frequency") {
				st.Frequency = frequency
			}
			if cmd.Flags().Changed("retain") {
				st.RetainCount = retain
			}
			if err := s.app.Settings.Save(ctx, st); err != nil {
				return err
			}
			s.log.Info().Bool("auto", st.AutoBackupEnabled).Str("frequency", st.Frequency).Int("retain", st.RetainCount).Msg("settings saved")
			return nil
		},
	}
	set.Flags().StringVar(&auto, "auto", "", "Enable automatic backups (true/false)")
	set.Flags().StringVar(&frequency, "frequency", "", "Automatic backup frequency (hourly, daily, weekly, monthly)")
	set.Flags().IntVar(&retain, "retain", 0, "Archives to keep; 0 keeps all")

	cmd.AddCommand(show, set)
	return cmd
}

func newConfigCmd() *cobra.Command {
	var input string
	var output string
	var key string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config utilities",
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" || key == "" {
				return fmt.Errorf("--input, --output, and --key are required")
			}
			return config.EncryptConfigFile(input, output, key)
		},
	}
	encrypt.Flags().StringVar(&input, "input", "", "Input config file")
	encrypt.Flags().StringVar(&output, "output", "", "Output encrypted config file")
	encrypt.Flags().StringVar(&key, "key", "", "Encryption key (base64 or hex)")

	keygen := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key for config or archive encryption",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := cryptoutil.GenerateKey()
			if err != nil {
				return err
			}
			printf("%s\n", k)
			return nil
		},
	}

	cmd.AddCommand(encrypt, keygen)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			printf("shopbk %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
