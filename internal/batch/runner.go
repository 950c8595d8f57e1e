package batch

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rawblock/bridge-dd-engine/internal/analysis"
	"github.com/rawblock/bridge-dd-engine/internal/db"
	"github.com/rawblock/bridge-dd-engine/internal/lin"
	"github.com/rawblock/bridge-dd-engine/pkg/models"
)

// Runner fans a list of boards out over a fixed-size worker pool and applies
// the DD cost analysis to each, persisting results and emitting them through
// an optional callback as they complete. Boards are independent, so workers
// share nothing: each owns its own analysis engine and cache pair.
type Runner struct {
	workers   int
	dbStore   *db.PostgresStore
	alertFunc func(models.BoardResult) // Optional broadcast callback
	config    analysis.Config

	// Progress tracking (atomic for safe concurrent reads)
	jobID          atomic.Value // string
	boardsTotal    atomic.Int64
	boardsAnalyzed atomic.Int64
	errorsFound    atomic.Int64
	isRunning      atomic.Bool
}

func NewRunner(workers int, cfg analysis.Config, dbStore *db.PostgresStore, alertFunc func(models.BoardResult)) *Runner {
	if workers < 1 {
		workers = 1
	}
	r := &Runner{
		workers:   workers,
		dbStore:   dbStore,
		alertFunc: alertFunc,
		config:    cfg,
	}
	r.jobID.Store("")
	return r
}

// Progress returns the runner's current state (thread-safe)
func (r *Runner) Progress() models.BatchProgress {
	jobID, _ := r.jobID.Load().(string)
	return models.BatchProgress{
		JobID:          jobID,
		IsRunning:      r.isRunning.Load(),
		BoardsTotal:    r.boardsTotal.Load(),
		BoardsAnalyzed: r.boardsAnalyzed.Load(),
		ErrorsFound:    r.errorsFound.Load(),
	}
}

// Run analyzes every board and returns the results ordered by board number.
// Unanalyzable boards (passed out, no play) are skipped. Cancelling the
// context abandons boards not yet started; finished results are still
// returned.
func (r *Runner) Run(ctx context.Context, boards []*lin.Board) ([]*models.BoardResult, string, error) {
	if !r.isRunning.CompareAndSwap(false, true) {
		return nil, "", ErrBusy
	}
	defer r.isRunning.Store(false)

	jobID := uuid.NewString()
	r.jobID.Store(jobID)
	r.boardsTotal.Store(int64(len(boards)))
	r.boardsAnalyzed.Store(0)
	r.errorsFound.Store(0)

	log.Printf("[BatchRunner] Job %s: analyzing %d boards on %d workers", jobID, len(boards), r.workers)

	jobs := make(chan int)
	results := make([]*models.BoardResult, len(boards))
	var wg sync.WaitGroup

	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine := analysis.NewEngine()
			for idx := range jobs {
				results[idx] = r.analyzeOne(ctx, engine, jobID, boards[idx])
			}
		}()
	}

feed:
	for i := range boards {
		select {
		case <-ctx.Done():
			log.Printf("[BatchRunner] Job %s cancelled after %d boards", jobID, r.boardsAnalyzed.Load())
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	out := make([]*models.BoardResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BoardNum < out[j].BoardNum
	})

	log.Printf("[BatchRunner] Job %s complete: %d boards analyzed, %d errors found",
		jobID, r.boardsAnalyzed.Load(), r.errorsFound.Load())
	return out, jobID, ctx.Err()
}

// analyzeOne runs a single board through the engine and fans the result out
// to the store and the alert callback. Failures are logged and skipped; one
// bad board never kills the batch.
func (r *Runner) analyzeOne(ctx context.Context, engine *analysis.Engine, jobID string, board *lin.Board) *models.BoardResult {
	result, err := engine.AnalyzeBoard(board, r.config)
	if err != nil {
		log.Printf("[BatchRunner] Board %d: analysis failed: %v", board.BoardNumber(), err)
		return nil
	}
	if result == nil {
		return nil // passed out or no play
	}

	r.boardsAnalyzed.Add(1)
	r.errorsFound.Add(int64(len(result.Errors)))

	if r.dbStore != nil {
		if err := r.dbStore.SaveBoardResult(ctx, jobID, result); err != nil {
			log.Printf("[BatchRunner] DB persist error for board %d: %v", result.BoardNum, err)
		}
	}
	if r.alertFunc != nil {
		r.alertFunc(*result)
	}
	return result
}
