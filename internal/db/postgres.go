package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rawblock/bridge-dd-engine/pkg/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for DD analysis results")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("DD analysis schema initialized")
	return nil
}

// SaveBoardResult persists one analyzed board and its per-card errors in a
// single transaction. Re-analyzing the same board of the same job upserts.
func (s *PostgresStore) SaveBoardResult(ctx context.Context, jobID string, result *models.BoardResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertBoardSQL := `
		INSERT INTO board_results
		(job_id, board_num, contract, declarer, initial_dd, final_result, truncated, budget_exceeded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id, board_num) DO UPDATE
		SET contract = EXCLUDED.contract, declarer = EXCLUDED.declarer,
		    initial_dd = EXCLUDED.initial_dd, final_result = EXCLUDED.final_result,
		    truncated = EXCLUDED.truncated, budget_exceeded = EXCLUDED.budget_exceeded;
	`
	_, err = tx.Exec(ctx, insertBoardSQL,
		jobID, result.BoardNum, result.Contract, result.Declarer,
		int(result.InitialDD), int(result.FinalResult), result.Truncated, result.BudgetExceeded)
	if err != nil {
		return fmt.Errorf("failed to insert board_results: %v", err)
	}

	// Replace the board's error rows wholesale; partial updates would leave
	// stale attributions behind after a re-run.
	if _, err := tx.Exec(ctx,
		`DELETE FROM dd_errors WHERE job_id = $1 AND board_num = $2;`,
		jobID, result.BoardNum); err != nil {
		return fmt.Errorf("failed to clear dd_errors: %v", err)
	}

	insertErrorSQL := `
		INSERT INTO dd_errors
		(job_id, board_num, player, seat, trick_num, card_position, card, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	for _, e := range result.Errors {
		_, err = tx.Exec(ctx, insertErrorSQL,
			jobID, result.BoardNum, e.Player, e.Seat, e.TrickNum, e.CardPosition, e.Card, int(e.Cost))
		if err != nil {
			return fmt.Errorf("failed to insert dd_error: %v", err)
		}
	}

	return tx.Commit(ctx)
}

// PlayerTotals aggregates error counts and tricks lost per player across all
// persisted boards, worst offenders first.
func (s *PostgresStore) PlayerTotals(ctx context.Context, limit int) ([]models.PlayerSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT player, COUNT(*) AS errors, COALESCE(SUM(cost), 0) AS tricks_lost,
		       COUNT(DISTINCT (job_id, board_num)) AS boards
		FROM dd_errors
		GROUP BY player
		ORDER BY tricks_lost DESC, player ASC
		LIMIT $1;
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.PlayerSummary{}
	for rows.Next() {
		var ps models.PlayerSummary
		if err := rows.Scan(&ps.Player, &ps.ErrorCount, &ps.TricksLost, &ps.Boards); err != nil {
			return nil, err
		}
		summaries = append(summaries, ps)
	}
	return summaries, rows.Err()
}

// RecentResults returns the latest analyzed boards for the dashboard.
func (s *PostgresStore) RecentResults(ctx context.Context, limit int) ([]models.BoardResult, error) {
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT board_num, contract, declarer, initial_dd, final_result, truncated, budget_exceeded
		FROM board_results
		ORDER BY analyzed_at DESC
		LIMIT $1;
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.BoardResult{}
	for rows.Next() {
		var r models.BoardResult
		var initial, final int
		if err := rows.Scan(&r.BoardNum, &r.Contract, &r.Declarer, &initial, &final, &r.Truncated, &r.BudgetExceeded); err != nil {
			return nil, err
		}
		r.InitialDD = uint8(initial)
		r.FinalResult = uint8(final)
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetPool exposes the connection pool for other subsystems
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
