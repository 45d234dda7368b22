package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/config"
	"github.com/japaniel/jpdict/pkg/deinflect"
	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/engine"
	"github.com/japaniel/jpdict/pkg/logging"
	"github.com/japaniel/jpdict/pkg/store"
)

// The IPA dictionary is large; load it once per process.
var loadAnalyzer = sync.OnceValues(deinflect.NewAnalyzer)

// app carries the global flags and the resources opened for one command.
type app struct {
	configPath string
	dbPath     string
	logLevel   string
	profile    int64

	cfg      *config.Config
	log      *slog.Logger
	analyzer *deinflect.Analyzer
	store    *store.Store
	engine   *engine.Engine
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "jpdict",
		Short:         "Japanese dictionary lookups over imported Yomitan, audio and JMdict archives",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path (overrides database.path)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides log.level)")
	root.PersistentFlags().Int64Var(&a.profile, "profile", 0, "profile id (default the current profile)")

	root.AddCommand(
		a.importCmd(),
		a.removeCmd(),
		a.dictsCmd(),
		a.enableCmd(true),
		a.enableCmd(false),
		a.sortDictCmd(),
		a.swapCmd(),
		a.profilesCmd(),
		a.profileCmd(),
		a.deinflectCmd(),
		a.lookupCmd(),
		a.lemmaCmd(),
		a.scanCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) loadConfig() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	a.cfg = cfg
	return nil
}

// withEngine opens the store and engine around fn.
func (a *app) withEngine(fn func(cmd *cobra.Command, args []string, e *engine.Engine) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.loadConfig(); err != nil {
			return err
		}
		a.log = logging.New(a.cfg.Log)

		defer func() {
			if cerr := a.close(); err == nil {
				err = cerr
			}
		}()

		analyzer, err := loadAnalyzer()
		if err != nil {
			return fmt.Errorf("load analyzer: %w", err)
		}
		a.analyzer = analyzer

		ctx := cmd.Context()
		a.store, err = store.Open(ctx, a.cfg.Database.Path, store.Options{
			BusyTimeout:  a.cfg.Database.BusyTimeout,
			StrictDecode: a.cfg.Lookup.StrictDecode,
			Logger:       a.log,
		})
		if err != nil {
			return err
		}
		a.engine, err = engine.New(ctx, a.store, engine.Options{
			Logger:       a.log,
			MaxLookahead: a.cfg.Lookup.MaxLookahead,
			Import: archive.Options{
				Workers:   a.cfg.Import.Workers,
				BatchSize: a.cfg.Import.BatchSize,
				Logger:    a.log,
			},
			ProgressBuffer: a.cfg.Import.ProgressBuffer,
			Analyzer:       analyzer,
		})
		if err != nil {
			return err
		}
		return fn(cmd, args, a.engine)
	}
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store, a.engine = nil, nil
	return err
}

// profileID resolves --profile, falling back to the current profile.
func (a *app) profileID(e *engine.Engine) (dictionary.ProfileID, error) {
	if a.profile != 0 {
		id := dictionary.ProfileID(a.profile)
		if _, ok := e.Snapshot().Profile(id); !ok {
			return 0, fmt.Errorf("profile %d: %w", id, dictionary.ErrNotFound)
		}
		return id, nil
	}
	p, err := e.CurrentProfile()
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			out, err := config.Dump(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
