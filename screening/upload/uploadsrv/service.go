package uploadsrv

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talentsift/sift/pkg/fsx"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/pkg/metrics"
	"github.com/talentsift/sift/screening/candidate/candidatesrv"
	"github.com/talentsift/sift/screening/upload"
)

// UploadService accepts CV batches and drives each file through
// extraction, storage, candidate insertion and analysis dispatch.
type UploadService struct {
	storage     fsx.FileSystem
	candidates  *candidatesrv.CandidateService
	extractor   upload.TextExtractor
	dispatcher  upload.AnalysisDispatcher
	concurrency int
	maxBytes    int64
	retention   time.Duration

	mu      sync.RWMutex
	batches map[kernel.BatchID]*upload.Batch
}

// DefaultBatchRetention is how long a finished batch stays pollable.
const DefaultBatchRetention = time.Hour

// NewUploadService creates a new upload service
func NewUploadService(
	storage fsx.FileSystem,
	candidates *candidatesrv.CandidateService,
	extractor upload.TextExtractor,
	dispatcher upload.AnalysisDispatcher,
	concurrency int,
	maxBytes int64,
	retention time.Duration,
) *UploadService {
	if concurrency < 1 {
		concurrency = 1
	}
	if retention <= 0 {
		retention = DefaultBatchRetention
	}
	return &UploadService{
		storage:     storage,
		candidates:  candidates,
		extractor:   extractor,
		dispatcher:  dispatcher,
		concurrency: concurrency,
		maxBytes:    maxBytes,
		retention:   retention,
		batches:     make(map[kernel.BatchID]*upload.Batch),
	}
}

// StartBatch validates the files, registers the batch and starts
// processing it in the background. The returned batch reflects the
// queued state; callers poll GetBatch for progress.
func (s *UploadService) StartBatch(
	ctx context.Context,
	accountID kernel.AccountID,
	jobID kernel.JobID,
	files []upload.File,
) (*upload.Batch, error) {
	if len(files) == 0 {
		return nil, upload.ErrEmptyBatch()
	}
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f.Filename), ".pdf") {
			return nil, upload.ErrNotPDF().WithDetail("filename", f.Filename)
		}
		if s.maxBytes > 0 && int64(len(f.Data)) > s.maxBytes {
			return nil, upload.ErrFileTooLarge().
				WithDetail("filename", f.Filename).
				WithDetail("size", len(f.Data))
		}
	}

	filenames := make([]string, len(files))
	for i, f := range files {
		filenames[i] = f.Filename
	}

	batch := upload.NewBatch(kernel.NewBatchID(uuid.NewString()), accountID, jobID, filenames)

	s.mu.Lock()
	s.batches[batch.ID] = batch
	s.mu.Unlock()

	// Processing outlives the request. The batch carries its own
	// completion tracking, so the caller's context is not reused.
	go s.processBatch(context.Background(), batch, files)

	logx.Infof("upload batch started: batch=%s job=%s files=%d", batch.ID, jobID, len(files))
	return batch, nil
}

// processBatch fans the files out over a bounded number of workers.
// One failing file never touches its siblings.
func (s *UploadService) processBatch(ctx context.Context, batch *upload.Batch, files []upload.File) {
	sem := make(chan struct{}, s.concurrency)
	items := batch.Items()

	for i := range files {
		item := items[i]
		file := files[i]
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			defer batch.Done()
			s.processItem(ctx, batch, item.ID, file)
		}()
	}

	// The batch stays pollable for a retention window after the last
	// item settles, then it is dropped. The candidate rows are the
	// durable outcome.
	batch.Wait()
	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		delete(s.batches, batch.ID)
		s.mu.Unlock()
	})
}

// processItem moves one file through the pipeline. A denied credit is
// a completed upload without a dispatched analysis, not a failure.
func (s *UploadService) processItem(ctx context.Context, batch *upload.Batch, itemID string, file upload.File) {
	if !batch.Transition(itemID, upload.ItemExtracting) {
		// Cancelled while queued.
		metrics.UploadsTotal.WithLabelValues("cancelled").Inc()
		return
	}

	text, err := s.extractor.ExtractText(ctx, file.Data)
	if err != nil {
		logx.Warnf("upload %s: text extraction failed for %s: %v", batch.ID, file.Filename, err)
		batch.Fail(itemID, upload.ErrExtractionFailed().Error())
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return
	}

	if !batch.Transition(itemID, upload.ItemUploading) {
		return
	}

	path := s.storagePath(batch.JobID, file.Filename)
	if err := s.storage.WriteFileStream(ctx, path.String(), bytes.NewReader(file.Data)); err != nil {
		logx.Errorf("upload %s: storing %s failed: %v", batch.ID, file.Filename, err)
		batch.Fail(itemID, "could not store the file")
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return
	}

	cand, err := s.candidates.CreateFromUpload(ctx, batch.AccountID, batch.JobID, nameFromFilename(file.Filename), text, path)
	if err != nil {
		logx.Errorf("upload %s: inserting candidate for %s failed: %v", batch.ID, file.Filename, err)
		batch.Fail(itemID, "could not create the candidate")
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return
	}
	batch.SetCandidate(itemID, cand.ID)

	if !batch.Transition(itemID, upload.ItemAnalyzing) {
		return
	}

	dispatched := false
	result, err := s.dispatcher.Dispatch(ctx, batch.AccountID, cand)
	switch {
	case err != nil:
		// The candidate row exists either way; analysis can be resumed
		// later, so the upload itself still completes.
		logx.Warnf("upload %s: dispatch failed for candidate %s: %v", batch.ID, cand.ID, err)
	case result.Dispatched:
		dispatched = true
	}

	batch.Complete(itemID, cand.ID, dispatched)
	metrics.UploadsTotal.WithLabelValues("completed").Inc()
}

// GetBatch returns a batch owned by the account
func (s *UploadService) GetBatch(accountID kernel.AccountID, id kernel.BatchID) (*upload.Batch, error) {
	s.mu.RLock()
	batch, ok := s.batches[id]
	s.mu.RUnlock()
	if !ok || batch.AccountID != accountID {
		return nil, upload.ErrBatchNotFound()
	}
	return batch, nil
}

// CancelItem cancels a queued item. Items already past the queue keep
// running.
func (s *UploadService) CancelItem(accountID kernel.AccountID, batchID kernel.BatchID, itemID string) error {
	batch, err := s.GetBatch(accountID, batchID)
	if err != nil {
		return err
	}
	for _, item := range batch.Items() {
		if item.ID == itemID {
			if !batch.Cancel(itemID) {
				return upload.ErrNotCancellable().WithDetail("state", item.State)
			}
			return nil
		}
	}
	return upload.ErrItemNotFound()
}

func (s *UploadService) storagePath(jobID kernel.JobID, filename string) kernel.StoragePath {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, filename)
	key := fmt.Sprintf("%d_%s", time.Now().UnixNano(), sanitized)
	return kernel.StoragePath(s.storage.Join(jobID.String(), key))
}

// nameFromFilename derives a readable placeholder name until the
// analysis extracts the real one.
func nameFromFilename(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.TrimSpace(name)
}
