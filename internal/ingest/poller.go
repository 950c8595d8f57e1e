// Package ingest feeds the batch runner from a drop directory: LIN files
// placed there are picked up on a polling loop, parsed, and analyzed. This
// is the service-mode ingestion path; the API accepts the same payloads
// directly.
package ingest

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rawblock/bridge-dd-engine/internal/api"
	"github.com/rawblock/bridge-dd-engine/internal/batch"
	"github.com/rawblock/bridge-dd-engine/internal/lin"
)

const pollInterval = 3 * time.Second

type Poller struct {
	dir       string
	runner    *batch.Runner
	wsHub     *api.Hub
	seenFiles map[string]bool
}

func NewPoller(dir string, runner *batch.Runner, wsHub *api.Hub) *Poller {
	return &Poller{
		dir:       dir,
		runner:    runner,
		wsHub:     wsHub,
		seenFiles: make(map[string]bool),
	}
}

// Run polls the drop directory until the context is cancelled. Each new
// .lin file is analyzed as one batch; files are tracked by name and never
// re-analyzed within a process lifetime.
func (p *Poller) Run(ctx context.Context) {
	if p.dir == "" {
		log.Println("[Poller] No watch directory configured; poller will not start")
		return
	}
	log.Printf("[Poller] Watching %s for LIN files", p.dir)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Poller] Stopped")
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep scans the directory once and analyzes anything new.
func (p *Poller) sweep(ctx context.Context) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		log.Printf("[Poller] Cannot read %s: %v", p.dir, err)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".lin") || p.seenFiles[name] {
			continue
		}
		p.seenFiles[name] = true
		p.processFile(ctx, filepath.Join(p.dir, name))
	}
}

func (p *Poller) processFile(ctx context.Context, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[Poller] Cannot read %s: %v", path, err)
		return
	}
	boards, err := lin.ParseFile(string(content))
	if err != nil {
		log.Printf("[Poller] Cannot parse %s: %v", path, err)
		return
	}
	if len(boards) == 0 {
		log.Printf("[Poller] %s contained no boards", path)
		return
	}

	results, jobID, err := p.runner.Run(ctx, boards)
	if err != nil {
		log.Printf("[Poller] Analysis of %s failed: %v", path, err)
		return
	}
	log.Printf("[Poller] %s: job %s analyzed %d boards", filepath.Base(path), jobID, len(results))

	if p.wsHub != nil {
		payload, err := json.Marshal(map[string]any{
			"type":    "batch_complete",
			"file":    filepath.Base(path),
			"jobId":   jobID,
			"boards":  len(results),
			"results": results,
		})
		if err != nil {
			log.Printf("[Poller] Failed to marshal batch payload: %v", err)
			return
		}
		p.wsHub.Broadcast(payload)
	}
}
