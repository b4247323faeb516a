package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/consequence-ledger/config"
	"github.com/warp/consequence-ledger/consequence"
	"github.com/warp/consequence-ledger/events"
	"github.com/warp/consequence-ledger/factory"
	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:           "ledgerctl",
	Short:         "Manage consequence profiles and their transaction log",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default $CONSEQUENCE_DB)")
	rootCmd.PersistentFlags().String("tz", "", "Default time zone for profiles without one (default $CONSEQUENCE_TIMEZONE)")
}

// session bundles what every command needs: the raw store for profiles and
// the validated (optionally mirrored) chain for transactions.
type session struct {
	cfg      config.Config
	store    *sqlite.Store
	ledger   generic.Store
	profiles *factory.ProfileFactory
	closers  []func() error
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	if tz, _ := cmd.Flags().GetString("tz"); tz != "" {
		cfg.TimeZone = tz
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &session{
		cfg:      cfg,
		store:    store,
		ledger:   generic.NewLedger(store),
		profiles: factory.NewProfileFactory(loc),
		closers:  []func() error{store.Close},
	}
	if cfg.MirrorEnabled() {
		mirror := events.NewMirror(s.ledger, events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		s.ledger = mirror
		s.closers = append([]func() error{mirror.Close}, s.closers...)
	}
	return s, nil
}

func (s *session) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}

// profile loads a stored profile by ID.
func (s *session) profile(ctx context.Context, id string) (consequence.Profile, error) {
	rec, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return consequence.Profile{}, err
	}
	if rec == nil {
		return consequence.Profile{}, fmt.Errorf("%w: %s", generic.ErrProfileNotFound, id)
	}
	p, err := s.profiles.ParseProfile(rec.ConfigJSON)
	if err != nil {
		return consequence.Profile{}, fmt.Errorf("stored profile %s: %w", id, err)
	}
	p.ID = generic.ProfileID(rec.ID)
	p.FamilyID = generic.FamilyID(rec.FamilyID)
	p.Name = rec.Name
	return p, nil
}

// engine starts a short-lived engine for one command. Callers Close it.
func (s *session) engine(ctx context.Context, p consequence.Profile) (*consequence.Engine, error) {
	order, err := s.cfg.AttributionOrder()
	if err != nil {
		return nil, err
	}
	e := consequence.NewEngine(s.ledger, p, consequence.WithAttribution(order))
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	return e, nil
}
