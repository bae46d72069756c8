// Package fingerprint turns an uploaded audio file into an fpcalc fingerprint.
package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"audiofp/internal/config"
	"audiofp/internal/models"
	"audiofp/internal/observability"
	"audiofp/internal/service/ledger"
	"audiofp/internal/worker"
)

// Submitter queues invocation jobs. *worker.Dispatcher satisfies it.
type Submitter interface {
	Submit(job worker.Job) error
}

// Result is a successful fingerprint. Data is the tool's JSON output verbatim.
type Result struct {
	Data       json.RawMessage
	Asset      *models.StagedAsset
	Invocation *models.InvocationResult
}

type Service struct {
	stager     *Stager
	invoker    *Invoker
	prober     *Prober
	dispatcher Submitter
	ledger     ledger.Store
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewService wires the pipeline from configuration.
func NewService(cfg *config.Config, dispatcher Submitter, store ledger.Store, metrics *observability.Metrics, logger *slog.Logger) *Service {
	runner := NewExecRunner()
	return NewServiceWithDeps(
		NewStager(cfg.Upload.Dir),
		NewInvoker(cfg.Fpcalc.Path, cfg.Fpcalc.Timeout, runner),
		NewProber(cfg.Fpcalc.Path, cfg.Fpcalc.ProbeTimeout, runner),
		dispatcher, store, metrics, logger,
	)
}

// NewServiceWithDeps builds a service from explicit parts. A nil dispatcher
// runs invocations on the calling goroutine; a nil store records nothing.
func NewServiceWithDeps(stager *Stager, invoker *Invoker, prober *Prober, dispatcher Submitter, store ledger.Store, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if store == nil {
		store = ledger.NoopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		stager:     stager,
		invoker:    invoker,
		prober:     prober,
		dispatcher: dispatcher,
		ledger:     store,
		metrics:    metrics,
		logger:     logger,
	}
}

// Fingerprint stages file, runs fpcalc on it and removes the staged copy
// before inspecting the outcome. The returned error is one of
// *InvocationError, ErrOutputParse, worker.ErrDispatcherBusy or an
// unexpected failure.
func (s *Service) Fingerprint(ctx context.Context, file *models.UploadedFile) (*Result, error) {
	asset, err := s.stager.Stage(file)
	if err != nil {
		s.metrics.ObserveOutcome(observability.OutcomeError)
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	s.metrics.ObserveUpload(asset.Size)
	log := s.logger.With("asset", asset.ID)
	// Ledger writes outlive a disconnected client.
	lctx := context.WithoutCancel(ctx)
	log.Debug("staged upload", "path", asset.Path, "size", asset.Size, "detected_mime", asset.DetectedMime)
	if err := s.ledger.RecordStaged(lctx, asset); err != nil {
		log.Warn("ledger record staged failed", "error", err)
	}

	res, err := s.invoke(ctx, asset.Path)
	s.cleanup(lctx, asset, log)
	if err != nil {
		s.metrics.ObserveOutcome(observability.OutcomeBusy)
		s.recordOutcome(lctx, log, &models.InvocationRecord{AssetID: asset.ID, Status: models.StatusRejected, Error: err.Error()})
		return nil, fmt.Errorf("queue invocation: %w", err)
	}

	rec := &models.InvocationRecord{AssetID: asset.ID, ExitCode: res.ExitCode, Elapsed: res.Duration}

	if res.Err != nil {
		s.metrics.ObserveInvocation("failed", res.Duration)
		s.metrics.ObserveOutcome(observability.OutcomeInvocationFailed)
		report := s.prober.Report(lctx, res, asset.Path)
		log.Error("fpcalc invocation failed",
			"command", report.Command,
			"details", report.Details,
			"error_code", report.ErrorCode,
			"timed_out", res.TimedOut,
			"report", report,
		)
		rec.Status = models.StatusInvocationFailed
		rec.Error = report.Details
		s.recordOutcome(lctx, log, rec)
		return nil, &InvocationError{Report: report, Err: res.Err}
	}
	s.metrics.ObserveInvocation("ok", res.Duration)

	if stderr := bytes.TrimSpace([]byte(res.Stderr)); len(stderr) > 0 {
		log.Warn("fpcalc wrote to stderr", "stderr", string(stderr))
	}

	out := bytes.TrimSpace(res.Stdout)
	if !json.Valid(out) {
		s.metrics.ObserveOutcome(observability.OutcomeParseFailed)
		log.Error("fpcalc output is not valid JSON", "output", string(res.Stdout))
		rec.Status = models.StatusParseFailed
		rec.Error = ErrOutputParse.Error()
		s.recordOutcome(lctx, log, rec)
		return nil, ErrOutputParse
	}

	rec.Status = models.StatusSucceeded
	rec.AudioDuration = gjson.GetBytes(out, "duration").Float()
	s.recordOutcome(lctx, log, rec)
	s.metrics.ObserveOutcome(observability.OutcomeSuccess)
	log.Info("fingerprint generated", "elapsed", res.Duration, "audio_duration", rec.AudioDuration)

	return &Result{Data: json.RawMessage(out), Asset: asset, Invocation: res}, nil
}

// invoke runs fpcalc through the dispatcher and waits for it to exit. The
// only error it returns is a refused submission.
func (s *Service) invoke(ctx context.Context, path string) (*models.InvocationResult, error) {
	if s.dispatcher == nil {
		return s.run(ctx, path), nil
	}
	done := make(chan *models.InvocationResult, 1)
	job := worker.Job{
		Type: worker.Run,
		Name: "fpcalc",
		Fn:   func() { done <- s.run(ctx, path) },
	}
	if err := s.dispatcher.Submit(job); err != nil {
		return nil, err
	}
	return <-done, nil
}

func (s *Service) run(ctx context.Context, path string) (res *models.InvocationResult) {
	defer s.metrics.TrackInFlight()()
	defer func() {
		if r := recover(); r != nil {
			res = &models.InvocationResult{
				Command: s.invoker.Command(path),
				Err:     fmt.Errorf("fpcalc invocation panicked: %v", r),
			}
		}
	}()
	return s.invoker.Invoke(ctx, path)
}

// cleanup removes the staged file exactly once. Failures are logged and
// leave the ledger entry pending for the sweeper.
func (s *Service) cleanup(ctx context.Context, asset *models.StagedAsset, log *slog.Logger) {
	if err := s.stager.Remove(asset); err != nil {
		s.metrics.CleanupFailed()
		log.Warn("remove staged file failed", "path", asset.Path, "error", err)
		return
	}
	if err := s.ledger.MarkRemoved(ctx, asset.ID, time.Now()); err != nil {
		log.Warn("ledger mark removed failed", "error", err)
	}
}

func (s *Service) recordOutcome(ctx context.Context, log *slog.Logger, rec *models.InvocationRecord) {
	rec.CompletedAt = time.Now().UTC()
	if err := s.ledger.RecordOutcome(ctx, rec); err != nil {
		log.Warn("ledger record outcome failed", "error", err)
	}
}
