package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"diag-bundle/analyzers/redact"
	"diag-bundle/collectors/linux"
	"diag-bundle/core/internal/config"
	"diag-bundle/core/internal/report"
	"diag-bundle/core/internal/version"
)

func newCollectCmd(a *app) *cobra.Command {
	var caseID string
	var noArchive bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect a diagnostic bundle for the plugins that apply to this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			if caseID == "" {
				caseID = uuid.NewString()
			}
			if caseID != filepath.Base(caseID) || caseID == "." || caseID == ".." {
				return fmt.Errorf("invalid case id %q: must be a single path element", caseID)
			}
			cfg := a.cfg
			if noArchive {
				cfg.Archive = false
			}

			redactor := redact.Default()
			if cfg.RedactFile != "" {
				r, err := redact.New(cfg.RedactFile)
				if err != nil {
					return fmt.Errorf("load redaction patterns: %w", err)
				}
				redactor = r
			}

			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}

			res, err := report.Run(ctx, report.Options{
				CaseID:      caseID,
				Output:      cfg.Output,
				Registry:    reg,
				Only:        cfg.Only,
				Skip:        cfg.Skip,
				All:         cfg.All,
				Env:         a.env(cfg),
				Parallelism: cfg.Parallelism,
				Collector:   collectorOptions(cfg, redactor),
				Archive:     cfg.Archive,
				Version:     version.Version,
				StartedAt:   time.Now().UTC(),
			})

			out := cmd.OutOrStdout()
			if err != nil && res.OutputDir != "" {
				fmt.Fprintf(out, "case=%s output=%s artifacts=%d partial=true\n", res.CaseID, res.OutputDir, len(res.Artifacts))
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("collection exceeded --timeout %s: %w", cfg.Timeout, err)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "case=%s output=%s artifacts=%d failures=%d\n", res.CaseID, res.OutputDir, len(res.Artifacts), res.Failures())
			if res.ArchivePath != "" {
				fmt.Fprintf(out, "archive=%s sha256=%s\n", res.ArchivePath, res.ArchiveSHA256)
			}
			return nil
		},
	}

	d := config.Default()
	f := cmd.Flags()
	f.StringVar(&caseID, "case-id", "", "Case ID (default: random UUID)")
	f.String("output", d.Output, "Bundle output directory")
	f.StringSlice("only", nil, "Run only these plugins (repeatable)")
	f.StringSlice("skip", nil, "Never run these plugins (repeatable)")
	f.Bool("all", false, "Run every selected plugin even when it does not apply to this host")
	f.StringArray("plugin-dir", d.PluginDirs, "Directory of plugin descriptors (repeatable)")
	f.Int("parallel", d.Parallelism, "Number of plugins collected concurrently")
	f.Duration("timeout", d.Timeout, "Overall collection timeout (0 disables)")
	f.Duration("cmd-timeout", d.CommandTimeout, "Timeout for each command and journal query")
	f.String("journal-since", d.JournalSince, "Oldest journal entries to include (journalctl --since)")
	f.Int64("max-file-bytes", d.MaxFileBytes, "Max bytes kept per file or command output (tail kept)")
	f.Int64("max-plugin-bytes", d.MaxPluginBytes, "Max bytes one plugin may copy from the filesystem")
	f.String("redact-file", "", "Extra redaction patterns, one regular expression per line")
	f.BoolVar(&noArchive, "no-archive", false, "Leave the case directory unpacked")

	for key, flag := range map[string]string{
		"output":           "output",
		"only":             "only",
		"skip":             "skip",
		"all":              "all",
		"plugin_dirs":      "plugin-dir",
		"parallelism":      "parallel",
		"timeout":          "timeout",
		"command_timeout":  "cmd-timeout",
		"journal_since":    "journal-since",
		"max_file_bytes":   "max-file-bytes",
		"max_plugin_bytes": "max-plugin-bytes",
		"redact_file":      "redact-file",
	} {
		_ = a.v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

func collectorOptions(cfg *config.Config, r *redact.Redactor) linux.Options {
	return linux.Options{
		MaxFileBytes:   cfg.MaxFileBytes,
		MaxPluginBytes: cfg.MaxPluginBytes,
		CommandTimeout: cfg.CommandTimeout,
		JournalSince:   cfg.JournalSince,
		Redactor:       r,
	}
}
