package analysissrv

import (
	"context"
	"time"

	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/screening/analysis"
	"github.com/talentsift/sift/screening/candidate"
	"github.com/talentsift/sift/screening/candidate/candidatesrv"
)

// Sweeper fails analysis tasks that have been in flight past the stuck
// threshold, so a worker crash or a callback that never arrives cannot
// leave candidates showing as analyzing forever. Failed candidates stay
// retryable through resume screening.
type Sweeper struct {
	tasks      analysis.TaskRepository
	candidates *candidatesrv.CandidateService
	interval   time.Duration
	threshold  time.Duration
}

// NewSweeper creates a new stuck-task sweeper
func NewSweeper(
	tasks analysis.TaskRepository,
	candidates *candidatesrv.CandidateService,
	interval time.Duration,
	threshold time.Duration,
) *Sweeper {
	return &Sweeper{
		tasks:      tasks,
		candidates: candidates,
		interval:   interval,
		threshold:  threshold,
	}
}

// Run sweeps on a ticker until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	logx.Infof("starting stuck-task sweeper: interval=%s threshold=%s", s.interval, s.threshold)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logx.Info("stuck-task sweeper stopping")
			return
		case <-ticker.C:
			if swept, err := s.SweepOnce(ctx); err != nil {
				logx.Errorf("sweep failed: %v", err)
			} else if swept > 0 {
				logx.Warnf("swept %d stuck analysis tasks", swept)
			}
		}
	}
}

// SweepOnce fails every task stuck past the threshold and returns how
// many it swept.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	stuck, err := s.tasks.FindStuck(ctx, s.threshold)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range stuck {
		task := &stuck[i]

		if err := s.tasks.MarkFailed(ctx, task.ID, "stuck past threshold"); err != nil {
			logx.Errorf("failed to fail stuck task %s: %v", task.ID, err)
			continue
		}

		if err := s.candidates.SetStatus(ctx, task.AccountID, task.CandidateID, candidate.AnalysisFailed); err != nil {
			logx.Errorf("failed to mark candidate %s as failed: %v", task.CandidateID, err)
		}

		swept++
	}

	return swept, nil
}
