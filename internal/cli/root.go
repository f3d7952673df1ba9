// Package cli implements trackerctl, the operator command line for the
// structure tool and factory reset.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/config"
	"github.com/kjstillabower/project-tracker-service/internal/observability"
	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/store"
	"github.com/kjstillabower/project-tracker-service/internal/structure"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// globals holds the persistent flags and the values resolved from them.
type globals struct {
	debug   bool
	baseDir string
	dataDir string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:          "trackerctl",
		Short:        "Maintenance commands for the project tracker",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return g.resolve()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "write structured logs to stderr")
	cmd.PersistentFlags().StringVar(&g.baseDir, "base-dir", "", "project directory checked against the manifest (default from config, else .)")
	cmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "data directory used by factory-reset (default from config, else static/data)")

	cmd.AddCommand(structureCmd(g))
	cmd.AddCommand(factoryResetCmd(g))
	return cmd
}

// resolve fills unset flags from config/{ENV_NAME}.yaml when one is present.
// A missing config file is not an error for the CLI.
func (g *globals) resolve() error {
	if g.debug {
		logger, err := observability.NewLogger()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		observability.SetDebug(true)
		g.logger = logger
	} else {
		g.logger = zap.NewNop()
	}

	cfg, err := config.Load()
	if err != nil {
		g.logger.Debug("running without config file", zap.Error(err))
	} else {
		g.cfg = cfg
	}

	if g.baseDir == "" {
		g.baseDir = "."
		if g.cfg != nil && g.cfg.StructureBaseDir != "" {
			g.baseDir = g.cfg.StructureBaseDir
		}
	}
	if g.dataDir == "" {
		g.dataDir = "static/data"
		if g.cfg != nil && g.cfg.DataDir != "" {
			g.dataDir = g.cfg.DataDir
		}
	}
	return nil
}

func (g *globals) tool() (*structure.Tool, error) {
	opts := structure.Options{BaseDir: g.baseDir, Logger: g.logger.Named("structure")}
	if g.cfg != nil {
		opts.Manifest = g.cfg.StructureManifest
		opts.BackupDir = g.cfg.StructureBackupDir
		opts.IgnoreDirs = g.cfg.StructureIgnoreDirs
	}
	return structure.New(opts)
}

func (g *globals) service() (*service.Service, error) {
	fs := store.NewFS(g.dataDir, g.logger, nil)
	if err := fs.MkdirAll(fs.Root()); err != nil {
		return nil, err
	}
	templates := ""
	if g.cfg != nil {
		templates = g.cfg.TemplatesDir
	}
	return service.New(fs, templates, g.logger), nil
}

// confirm prints prompt and reports whether the trimmed answer read from in
// equals want, ignoring case only when foldCase is set. EOF counts as no.
func confirm(in io.Reader, out io.Writer, prompt, want string, foldCase bool) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	answer := strings.TrimSpace(line)
	if foldCase {
		return strings.EqualFold(answer, want)
	}
	return answer == want
}
