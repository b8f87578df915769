package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSeasonArchived is returned when a season id was already archived.
var ErrSeasonArchived = errors.New("season already archived")

// Standing is one player's final position in a season.
type Standing struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Rank        int    `json:"rank"`
	Score       int    `json:"score"`
}

// Palmares is a player's trophy cabinet across seasons.
type Palmares struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Gold        int    `json:"gold"`
	Silver      int    `json:"silver"`
	Bronze      int    `json:"bronze"`
	Podiums     int    `json:"podiums"`
	Seasons     int    `json:"seasons"`
	BestRank    int    `json:"bestRank"`
}

// Trophies is the palmares and seasons repository.
type Trophies struct {
	db  *DB
	now func() time.Time
}

// NewTrophies returns the palmares repository.
func NewTrophies(db *DB) *Trophies { return &Trophies{db: db, now: time.Now} }

// ArchiveSeason credits every standing and records seasonID, all in one
// transaction. A season can be archived once; later calls return ErrSeasonArchived.
func (t *Trophies) ArchiveSeason(ctx context.Context, seasonID string, standings []Standing) error {
	tx, err := t.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM seasons WHERE id = ?`, seasonID).Scan(&one)
	if err == nil {
		return fmt.Errorf("%s: %w", seasonID, ErrSeasonArchived)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("query seasons: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO seasons (id, archived_at, players) VALUES (?, ?, ?)`,
		seasonID, t.now().UnixMilli(), len(standings)); err != nil {
		return fmt.Errorf("record season: %w", err)
	}

	upsert := t.db.dialect.Upsert("palmares", []string{"user_id"},
		[]string{"display_name", "gold", "silver", "bronze", "podiums", "seasons", "best_rank"})
	for _, s := range standings {
		p, err := palmaresTx(ctx, tx, s.UserID)
		if err != nil {
			return err
		}
		p.credit(s)
		if _, err := tx.ExecContext(ctx, upsert, p.UserID, p.DisplayName,
			p.Gold, p.Silver, p.Bronze, p.Podiums, p.Seasons, p.BestRank); err != nil {
			return fmt.Errorf("update palmares %s: %w", s.UserID, err)
		}
	}
	return tx.Commit()
}

func (p *Palmares) credit(s Standing) {
	p.UserID = s.UserID
	if s.DisplayName != "" {
		p.DisplayName = s.DisplayName
	}
	p.Seasons++
	switch s.Rank {
	case 1:
		p.Gold++
	case 2:
		p.Silver++
	case 3:
		p.Bronze++
	}
	if s.Rank >= 1 && s.Rank <= 3 {
		p.Podiums++
	}
	if s.Rank > 0 && (p.BestRank == 0 || s.Rank < p.BestRank) {
		p.BestRank = s.Rank
	}
}

const palmaresCols = `user_id, display_name, gold, silver, bronze, podiums, seasons, best_rank`

func scanPalmares(row *sql.Row) (Palmares, error) {
	var p Palmares
	err := row.Scan(&p.UserID, &p.DisplayName, &p.Gold, &p.Silver, &p.Bronze, &p.Podiums, &p.Seasons, &p.BestRank)
	return p, err
}

func palmaresTx(ctx context.Context, tx *Tx, userID string) (Palmares, error) {
	p, err := scanPalmares(tx.QueryRowContext(ctx, `SELECT `+palmaresCols+` FROM palmares WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Palmares{UserID: userID}, nil
	}
	if err != nil {
		return Palmares{}, fmt.Errorf("query palmares: %w", err)
	}
	return p, nil
}

// Get returns the palmares of userID; players without trophies get an empty record.
func (t *Trophies) Get(ctx context.Context, userID string) (Palmares, error) {
	p, err := scanPalmares(t.db.QueryRowContext(ctx, `SELECT `+palmaresCols+` FROM palmares WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Palmares{UserID: userID}, nil
	}
	if err != nil {
		return Palmares{}, fmt.Errorf("query palmares: %w", err)
	}
	return p, nil
}
