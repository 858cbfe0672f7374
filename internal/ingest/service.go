package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"media-ingest/internal/logging"
	"media-ingest/internal/media"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
	"media-ingest/internal/quota"
	"media-ingest/internal/storage"
	"media-ingest/internal/verify"
)

// DefaultMaxUploadBytes is the upload ceiling when none is configured.
const DefaultMaxUploadBytes = 10 << 20

// ManifestStore persists manifests. Inserting is the commit point.
type ManifestStore interface {
	InsertManifest(ctx context.Context, m *mediatypes.AssetManifest) (int64, error)
}

// UploadCandidate is one uploaded file as received from the client. Only Data
// and OwnerID are trusted.
type UploadCandidate struct {
	Data         []byte
	DeclaredType string
	Filename     string
	DeclaredSize int64
	OwnerID      int64
}

// Request is the input to Ingest. Sizes is resolved by the caller from a
// named profile.
type Request struct {
	Upload UploadCandidate
	Sizes  mediatypes.SizeSet
}

// Result describes a persisted asset.
type Result struct {
	AssetID  int64                     `json:"assetId"`
	Manifest *mediatypes.AssetManifest `json:"manifest"`
	// CreatedRenditionNames lists the original and every configured size in
	// production order, fallbacks included.
	CreatedRenditionNames []string `json:"createdRenditionNames"`
	// Failures maps sizes that were replaced by the original to the reason.
	Failures map[string]error `json:"-"`
}

// Config holds the limits applied by Service.
type Config struct {
	MaxUploadBytes int64
	// TranscodeSlots bounds concurrent decode/encode work across requests.
	TranscodeSlots int
	// Memory, when set, delays new transcodes while the heap is under
	// pressure.
	Memory Backpressure
}

// Backpressure blocks until it is safe to start memory-heavy work.
type Backpressure interface {
	Wait(ctx context.Context) error
}

// Service runs the ingestion pipeline.
type Service struct {
	store     ManifestStore
	guard     *quota.Guard
	verifier  *verify.Verifier
	layout    *storage.Layout
	generator *media.Generator
	maxUpload int64
	slots     *semaphore.Weighted
	memory    Backpressure
	now       func() time.Time
	seq       atomic.Uint64
}

// NewService wires the pipeline components.
func NewService(store ManifestStore, guard *quota.Guard, verifier *verify.Verifier,
	layout *storage.Layout, generator *media.Generator, cfg Config,
) *Service {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.TranscodeSlots <= 0 {
		cfg.TranscodeSlots = 1
	}
	return &Service{
		store:     store,
		guard:     guard,
		verifier:  verifier,
		layout:    layout,
		generator: generator,
		maxUpload: cfg.MaxUploadBytes,
		slots:     semaphore.NewWeighted(int64(cfg.TranscodeSlots)),
		memory:    cfg.Memory,
		now:       time.Now,
	}
}

// MaxUploadBytes returns the configured upload ceiling.
func (s *Service) MaxUploadBytes() int64 {
	return s.maxUpload
}

// Quota returns the guard used for admission.
func (s *Service) Quota() *quota.Guard {
	return s.guard
}

// attempt carries the state of one Ingest call.
type attempt struct {
	state State
	log   logging.Scope
	files *storage.Attempt
	start time.Time
}

func (a *attempt) advance(to State) {
	a.log.Debug("%s -> %s", a.state, to)
	a.state = to
}

// Ingest validates the upload, writes the original and every configured
// size, and commits a manifest. On any failure after the first write every
// file of this attempt is removed before the error is returned.
func (s *Service) Ingest(ctx context.Context, req Request) (res *Result, err error) {
	a := &attempt{
		state: StateAdmitted,
		log:   logging.NewScope("ingest", fmt.Sprintf("u%d-%d", req.Upload.OwnerID, s.seq.Add(1))),
		start: time.Now(),
	}

	metrics.IngestInProgress.Inc()
	defer func() {
		metrics.IngestInProgress.Dec()
		s.finish(a, err)
	}()

	if err := s.admit(ctx, a, req); err != nil {
		return nil, err
	}

	verified, err := s.verify(a, req.Upload)
	if err != nil {
		return nil, err
	}
	a.advance(StateVerified)

	res, err = s.produce(ctx, a, req, verified)
	if err != nil {
		if a.files != nil {
			s.cleanup(a)
		}
		return nil, err
	}
	return res, nil
}

// admit runs the pre-I/O checks: quota, sizes, file presence, upload
// ceiling and declared type.
func (s *Service) admit(ctx context.Context, a *attempt, req Request) error {
	if err := ctx.Err(); err != nil {
		return newError(KindTransport, ReasonCanceled, err)
	}

	up := req.Upload
	stage := time.Now()
	ok, err := s.guard.Admit(ctx, up.OwnerID)
	metrics.IngestStageDuration.WithLabelValues("quota").Observe(time.Since(stage).Seconds())
	if err != nil {
		return newError(KindPersistence, ReasonInternal, err)
	}
	if !ok {
		metrics.QuotaRejectionsTotal.Inc()
		e := newError(KindValidation, ReasonQuotaExceeded,
			fmt.Errorf("owner %d holds the maximum of %d assets", up.OwnerID, s.guard.Ceiling()))
		e.QuotaCeiling = s.guard.Ceiling()
		return e
	}

	if err := req.Sizes.Validate(); err != nil {
		return newError(KindValidation, ReasonInvalidSizes, err)
	}
	if len(up.Data) == 0 {
		return newError(KindTransport, ReasonMissingFile, verify.ErrEmpty)
	}
	if int64(len(up.Data)) > s.maxUpload || up.DeclaredSize > s.maxUpload {
		return newError(KindValidation, ReasonTooLarge,
			fmt.Errorf("upload of %d bytes exceeds %d", max(int64(len(up.Data)), up.DeclaredSize), s.maxUpload))
	}
	if up.DeclaredSize > 0 && up.DeclaredSize != int64(len(up.Data)) {
		return newError(KindTransport, ReasonMissingFile,
			fmt.Errorf("incomplete upload: declared %d bytes, received %d", up.DeclaredSize, len(up.Data)))
	}
	if declared := strings.TrimSpace(up.DeclaredType); declared != "" {
		if !mediatypes.FromMimeType(declared).IsAllowed() {
			return newError(KindValidation, ReasonDisallowedType, fmt.Errorf("declared type %q", declared))
		}
	}

	a.log.Debug("admitted %q (%d bytes) for owner %d", up.Filename, len(up.Data), up.OwnerID)
	return nil
}

func (s *Service) verify(a *attempt, up UploadCandidate) (verify.Result, error) {
	stage := time.Now()
	result, err := s.verifier.Verify(up.Data)
	metrics.IngestStageDuration.WithLabelValues("verify").Observe(time.Since(stage).Seconds())
	if err != nil {
		return result, classifyVerify(err)
	}
	a.log.Debug("verified %s %dx%d (%q, declared %q)", result.Type, result.Width, result.Height, up.Filename, up.DeclaredType)
	return result, nil
}

// produce runs every stage that writes files. The caller cleans up when it
// returns an error and a.files is set.
func (s *Service) produce(ctx context.Context, a *attempt, req Request, verified verify.Result) (*Result, error) {
	stage := time.Now()
	dest, err := s.layout.Resolve()
	metrics.IngestStageDuration.WithLabelValues("layout").Observe(time.Since(stage).Seconds())
	if err != nil {
		return nil, classifyLayout(err)
	}
	if dest.Fallback() {
		a.log.Warn("writing to storage root %s", dest.FullDir)
	}
	a.files = s.layout.NewAttempt(dest, a.log)

	out, err := s.generate(ctx, a, req, verified)
	if err != nil {
		return nil, err
	}
	a.advance(StateRenditionsGenerated)

	if err := ctx.Err(); err != nil {
		return nil, newError(KindTransport, ReasonCanceled, err)
	}

	manifest := &mediatypes.AssetManifest{
		OwnerID:      req.Upload.OwnerID,
		OriginalName: req.Upload.Filename,
		SourceType:   verified.Type,
		Renditions:   out.Renditions,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}

	stage = time.Now()
	id, err := s.store.InsertManifest(ctx, manifest)
	metrics.IngestStageDuration.WithLabelValues("persist").Observe(time.Since(stage).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindTransport, ReasonCanceled, fmt.Errorf("insert manifest: %w", err))
		}
		return nil, newError(KindPersistence, ReasonInternal, fmt.Errorf("insert manifest: %w", err))
	}
	manifest.ID = id
	a.files.Commit()
	a.advance(StatePersisted)

	return &Result{
		AssetID:               id,
		Manifest:              manifest,
		CreatedRenditionNames: out.Order,
		Failures:              out.Failures,
	}, nil
}

// generate holds a transcode slot while decoding and encoding.
func (s *Service) generate(ctx context.Context, a *attempt, req Request, verified verify.Result) (*media.Output, error) {
	metrics.IngestTranscodeWaiting.Inc()
	err := s.waitForMemory(ctx)
	if err == nil {
		err = s.slots.Acquire(ctx, 1)
	}
	metrics.IngestTranscodeWaiting.Dec()
	if err != nil {
		return nil, newError(KindTransport, ReasonCanceled, err)
	}
	defer s.slots.Release(1)

	a.advance(StateTranscoding)
	stage := time.Now()
	out, err := s.generator.Generate(ctx, media.Job{
		Data:  req.Upload.Data,
		Type:  verified.Type,
		Sizes: req.Sizes,
		Dest:  a.files,
		Log:   a.log,
	})
	metrics.IngestStageDuration.WithLabelValues("generate").Observe(time.Since(stage).Seconds())
	if err != nil {
		return nil, classifyGenerate(err)
	}
	if n := len(out.Failures); n > 0 {
		a.log.Warn("%d of %d sizes fell back to the original: %v", n, len(req.Sizes), out.Fallbacks())
	}
	return out, nil
}

func (s *Service) waitForMemory(ctx context.Context) error {
	if s.memory == nil {
		return nil
	}
	return s.memory.Wait(ctx)
}

func (s *Service) cleanup(a *attempt) {
	report := a.files.Cleanup()
	metrics.CleanupFilesRemoved.Add(float64(report.Removed))
	metrics.CleanupFailures.Add(float64(report.Failed))
	if report.Failed > 0 {
		a.log.Error("cleanup left %d file(s) behind", report.Failed)
	}
}

func (s *Service) finish(a *attempt, err error) {
	elapsed := time.Since(a.start).Seconds()
	if err == nil {
		metrics.IngestAttemptsTotal.WithLabelValues("success", "").Inc()
		metrics.IngestDuration.WithLabelValues("success").Observe(elapsed)
		a.log.Info("ingested in %.3fs", elapsed)
		return
	}

	failedAt := a.state
	a.state = StateAborted
	reason := ReasonOf(err)
	metrics.IngestAttemptsTotal.WithLabelValues("error", string(reason)).Inc()
	metrics.IngestDuration.WithLabelValues("error").Observe(elapsed)

	if ie, ok := AsError(err); ok && (ie.Kind == KindValidation || ie.Kind == KindTransport) {
		a.log.Info("rejected in state %s: %v", failedAt, err)
		return
	}
	a.log.Error("aborted in state %s: %v", failedAt, err)
}
