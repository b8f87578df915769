package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grasdvirus/double-words-sub000/internal/database"
	"github.com/grasdvirus/double-words-sub000/internal/duel"
	"github.com/grasdvirus/double-words-sub000/internal/generator"
	"github.com/grasdvirus/double-words-sub000/internal/httpserver"
	"github.com/grasdvirus/double-words-sub000/internal/leaderboard"
	"github.com/grasdvirus/double-words-sub000/internal/store"
	"github.com/grasdvirus/double-words-sub000/internal/tournament"
)

const seasonCheckEvery = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	gen, err := newGenerator(ctx, a.cfg.TextGen)
	if err != nil {
		return err
	}
	cats, err := tournament.Default()
	if err != nil {
		return err
	}
	trophies := database.NewTrophies(a.db)

	go a.board.RunSeason(ctx, a.cfg.Season, trophies, seasonCheckEvery, time.Now, func(rep leaderboard.Report) {
		a.reportSeason(ctx, rep)
	})

	srv := httpserver.New(httpserver.Deps{
		Config:      a.cfg,
		Users:       database.NewUsers(a.db),
		Trophies:    trophies,
		KV:          database.NewKV(a.db),
		Rounds:      store.NewMemoryRounds(),
		Generator:   gen,
		Tournaments: cats,
		Duels:       duel.NewService(a.docs, gen),
		Board:       a.board,
	})
	log.Info().Str("port", a.cfg.Port).Str("db", a.cfg.DBDriver).Msg("starting double-words server")
	if err := srv.Start(ctx, ":"+a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// newGenerator uses the text generation service when configured and the
// embedded word lists otherwise.
func newGenerator(ctx context.Context, cfg generator.TextGenConfig) (generator.Generator, error) {
	if cfg.URL != "" {
		log.Info().Str("url", cfg.URL).Str("model", cfg.Model).Msg("using text generation service")
		return generator.NewTextGen(ctx, cfg), nil
	}
	wl, err := generator.LoadWordlist()
	if err != nil {
		return nil, err
	}
	log.Info().Interface("words", wl.Stats()).Msg("using embedded word lists")
	return wl, nil
}
