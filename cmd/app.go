package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/grasdvirus/double-words-sub000/assets"
	"github.com/grasdvirus/double-words-sub000/internal/config"
	"github.com/grasdvirus/double-words-sub000/internal/database"
	"github.com/grasdvirus/double-words-sub000/internal/docstore"
	"github.com/grasdvirus/double-words-sub000/internal/duel"
	"github.com/grasdvirus/double-words-sub000/internal/leaderboard"
	"github.com/grasdvirus/double-words-sub000/internal/notify"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg    config.Config
	db     *database.DB
	docs   *docstore.Store
	board  *leaderboard.Board
	mailer *notify.Mailer
}

// openApp loads configuration, migrates the database and restores the
// document store.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.SetupLogging()

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx, assets.Migrations()); err != nil {
		_ = db.Close()
		return nil, err
	}

	docs := docstore.New(
		docstore.WithRules(docstore.Chain(duel.Rules, leaderboard.Rules)),
		docstore.WithPersister(database.NewDocuments(db)),
	)
	if err := docs.Load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	mailer, err := notify.NewMailer(ctx, cfg.SESRegion, cfg.SESFrom)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &app{cfg: cfg, db: db, docs: docs, board: leaderboard.New(docs), mailer: mailer}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("close database")
	}
}

// reportSeason e-mails the season report when a sender and recipients are configured.
func (a *app) reportSeason(ctx context.Context, rep leaderboard.Report) {
	if !a.mailer.Enabled() || len(a.cfg.SeasonReportTo) == 0 {
		log.Info().Str("season", rep.SeasonID).Int("players", len(rep.Standings)).Msg("season report not mailed")
		return
	}
	if err := a.mailer.SendSeasonReport(ctx, a.cfg.SeasonReportTo, rep); err != nil {
		log.Error().Err(err).Str("season", rep.SeasonID).Msg("send season report")
	}
}
