// Package sorter runs a face classification session: it loads the known
// identities, preprocesses the input images, classifies them in parallel and
// copies every original into the folder of each person found in it.
package sorter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/control"
	"github.com/kozaktomas/face-sorter/internal/events"
	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/fileutil"
	"github.com/kozaktomas/face-sorter/internal/imaging"
	"github.com/kozaktomas/face-sorter/internal/logging"
	"github.com/kozaktomas/face-sorter/internal/pathutil"
	"github.com/kozaktomas/face-sorter/internal/registry"
	"github.com/kozaktomas/face-sorter/internal/report"
	"github.com/kozaktomas/face-sorter/internal/staging"
	"github.com/kozaktomas/face-sorter/internal/workerpool"
)

// ErrSessionRunning is returned by Start while another session is active.
var ErrSessionRunning = errors.New("a session is already running")

// Messages recorded in the report's error list.
const (
	ErrMsgNoIdentities = "no known identities found"
	ErrMsgNoInput      = "no valid images found in input"
	ErrMsgNoSurvivors  = "no valid images after preprocessing"
	ErrMsgCancelled    = "cancelled by user"
)

// State is the lifecycle phase of the Sorter.
type State int32

const (
	StateIdle State = iota
	StatePreparing
	StatePreprocessing
	StateClassifying
	StateReporting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StatePreprocessing:
		return "preprocessing"
	case StateClassifying:
		return "classifying"
	case StateReporting:
		return "reporting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Sorter. Zero values select the defaults in constants.
type Options struct {
	Workers         int    // 0 = sized from the CPU count
	RegistryFile    string // relative paths resolve against the reference folder
	ReportFile      string
	UnknownFolder   string
	StagingDir      string // parent of the session staging directory, "" = system temp
	PausePoll       time.Duration
	StaleStagingAge time.Duration
	MaxWidth        int
	MaxHeight       int
	JPEGQuality     int
	LogLevel        zapcore.Level // minimum level forwarded to the log queue

	// OnStateChange is called from the session goroutine on every transition.
	OnStateChange func(State)
	// Now stamps the report. Defaults to time.Now.
	Now func() time.Time
}

// Result describes a finished session.
type Result struct {
	SessionID  string          `json:"session_id"`
	Identities []string        `json:"identities"`
	Total      int             `json:"total"`
	Processed  int             `json:"processed"`
	Errors     []string        `json:"errors"`
	Cancelled  bool            `json:"cancelled"`
	ReportPath string          `json:"report_path"`
	Summary    *report.Summary `json:"summary,omitempty"`
}

// Sorter owns the progress and log queues for its whole lifetime and runs
// at most one session at a time.
type Sorter struct {
	collaborator facematch.Collaborator
	opts         Options
	logger       *zap.Logger

	progress *events.Queue[events.Progress]
	logs     *events.Queue[events.LogLine]
	signal   *control.Signal

	mu    sync.Mutex
	state State
	log   *zap.Logger // session logger, also feeds the log queue

	total     atomic.Int64
	processed atomic.Int64
}

// New creates an idle Sorter.
func New(collaborator facematch.Collaborator, opts Options, logger *zap.Logger) *Sorter {
	if opts.Workers <= 0 {
		opts.Workers = workerpool.Size(runtime.NumCPU())
	}
	if opts.ReportFile == "" {
		opts.ReportFile = constants.ReportFileName
	}
	if opts.UnknownFolder == "" {
		opts.UnknownFolder = constants.UnknownFolder
	}
	if opts.PausePoll <= 0 {
		opts.PausePoll = constants.PausePollInterval
	}
	if opts.StaleStagingAge <= 0 {
		opts.StaleStagingAge = constants.StaleStagingAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sorter{
		collaborator: collaborator,
		opts:         opts,
		logger:       logger,
		progress:     events.NewQueue[events.Progress](),
		logs:         events.NewQueue[events.LogLine](),
		signal:       control.NewSignal(),
		log:          logger,
	}
}

// Progress returns the queue of per-image progress ticks.
func (s *Sorter) Progress() *events.Queue[events.Progress] {
	return s.progress
}

// Logs returns the queue of human-readable log lines.
func (s *Sorter) Logs() *events.Queue[events.LogLine] {
	return s.logs
}

// State returns the current lifecycle phase.
func (s *Sorter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Processed returns the number of classification units completed in the
// current or last session.
func (s *Sorter) Processed() int {
	return int(s.processed.Load())
}

// Total returns the number of images of the current stage.
func (s *Sorter) Total() int {
	return int(s.total.Load())
}

// Pause holds classification workers before their next image. It reports
// false outside of the preprocessing and classification phases.
func (s *Sorter) Pause() bool {
	return s.control("processing paused", s.signal.Pause)
}

// Resume releases paused workers.
func (s *Sorter) Resume() bool {
	return s.control("processing resumed", s.signal.Resume)
}

// Cancel stops the session. Units already running finish; the rest are
// skipped and the report is still written.
func (s *Sorter) Cancel() bool {
	return s.control("processing cancelled", s.signal.Cancel)
}

func (s *Sorter) control(msg string, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePreprocessing && s.state != StateClassifying {
		return false
	}
	apply()
	s.log.Info(msg)
	return true
}

func (s *Sorter) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}

// session is the state of one Start call.
type session struct {
	id  string
	log *zap.Logger

	referenceRoot string
	inputRoot     string
	outputRoot    string

	processor  *imaging.Processor
	staging    *staging.Area
	lock       *flock.Flock
	identities registry.Identities

	mu     sync.Mutex
	errors []string
}

func (ss *session) addError(msg string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.errors = append(ss.errors, msg)
}

func (ss *session) errorList() []string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return append([]string(nil), ss.errors...)
}

// staged is an input image that survived preprocessing.
type staged struct {
	original string
	path     string
}

// Start runs one session to completion. Failures inside the session are
// collected into Result.Errors and the report; the only error returned is
// ErrSessionRunning. Cancelling ctx cancels the session.
func (s *Sorter) Start(ctx context.Context, referenceRoot, inputRoot, outputRoot string) (*Result, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrSessionRunning
	}
	ss := s.newSession()
	s.state = StatePreparing
	s.log = ss.log
	s.mu.Unlock()
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(StatePreparing)
	}

	stop := context.AfterFunc(ctx, func() {
		ss.log.Info("context done, cancelling session")
		s.signal.Cancel()
	})
	defer stop()

	ss.log.Info("starting session",
		zap.String("reference", referenceRoot),
		zap.String("input", inputRoot),
		zap.String("output", outputRoot))

	if images, ok := s.prepare(ctx, ss, referenceRoot, inputRoot, outputRoot); ok {
		s.setState(StatePreprocessing)
		survivors := s.preprocess(ctx, ss, images)
		if len(survivors) > 0 && !s.stopping(ctx) {
			s.setState(StateClassifying)
			s.classify(ctx, ss, survivors)
		}
	}

	return s.finish(ctx, ss, outputRoot), nil
}

func (s *Sorter) newSession() *session {
	s.signal.Reset()
	s.total.Store(0)
	s.processed.Store(0)

	id := uuid.NewString()
	core := zapcore.NewTee(s.logger.Core(), logging.NewQueueCore(s.logs, s.opts.LogLevel))
	log := logging.WithSession(zap.New(core), id)
	return &session{
		id:        id,
		log:       log,
		processor: imaging.NewProcessor(s.opts.MaxWidth, s.opts.MaxHeight, s.opts.JPEGQuality, log),
	}
}

// prepare resolves the roots, takes the output lock, creates the staging
// area, loads the registry and enumerates the input. It returns false when
// the session must go straight to reporting.
func (s *Sorter) prepare(ctx context.Context, ss *session, referenceRoot, inputRoot, outputRoot string) ([]string, bool) {
	roots := []struct {
		label string
		raw   string
		dst   *string
	}{
		{"reference", referenceRoot, &ss.referenceRoot},
		{"input", inputRoot, &ss.inputRoot},
		{"output", outputRoot, &ss.outputRoot},
	}
	for _, r := range roots {
		p, err := pathutil.Normalize(r.raw, "")
		if err != nil {
			s.fatal(ss, fmt.Sprintf("invalid %s folder: %v", r.label, err))
			return nil, false
		}
		*r.dst = p
	}

	for _, dir := range []string{ss.outputRoot, ss.referenceRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.fatal(ss, fmt.Sprintf("permission error: cannot create folder: %v", err))
			return nil, false
		}
	}
	if info, err := os.Stat(ss.inputRoot); err != nil {
		s.fatal(ss, fmt.Sprintf("permission error: cannot access input folder: %v", err))
		return nil, false
	} else if !info.IsDir() {
		s.fatal(ss, fmt.Sprintf("input %s is not a folder", ss.inputRoot))
		return nil, false
	}

	ss.lock = flock.New(filepath.Join(ss.outputRoot, constants.LockFileName))
	locked, err := ss.lock.TryLock()
	if err != nil {
		ss.lock = nil
		s.fatal(ss, fmt.Sprintf("permission error: output folder is not writable: %v", err))
		return nil, false
	}
	if !locked {
		ss.lock = nil
		s.fatal(ss, fmt.Sprintf("output folder %s is used by another session", ss.outputRoot))
		return nil, false
	}

	staging.CleanStale(s.opts.StagingDir, s.opts.StaleStagingAge, ss.log)
	area, err := staging.New(s.opts.StagingDir, ss.id)
	if err != nil {
		s.fatal(ss, fmt.Sprintf("permission error: %v", err))
		return nil, false
	}
	ss.staging = area

	s.loadIdentities(ctx, ss)
	if s.stopping(ctx) {
		return nil, false
	}

	images := s.enumerate(ss)
	if len(images) == 0 {
		ss.log.Warn("no valid images found", zap.String("input", ss.inputRoot))
		ss.addError(ErrMsgNoInput)
		return nil, false
	}
	s.total.Store(int64(len(images)))
	ss.log.Info(fmt.Sprintf("found %d images in input", len(images)))
	return images, true
}

// stopping reports whether the session was cancelled, including through a
// done ctx whose cancellation has not reached the signal yet.
func (s *Sorter) stopping(ctx context.Context) bool {
	return s.signal.IsCancelled() || ctx.Err() != nil
}

func (s *Sorter) fatal(ss *session, msg string) {
	ss.log.Error(msg)
	ss.addError(msg)
}

// loadIdentities reads the registry file, or rebuilds it from the reference
// folder when the file is missing, unreadable or yields nothing.
func (s *Sorter) loadIdentities(ctx context.Context, ss *session) {
	loader := registry.NewLoader(s.collaborator.Embedder, ss.processor, registry.Options{
		StagingDir:    ss.staging.Path(),
		Workers:       s.opts.Workers,
		UnknownFolder: s.opts.UnknownFolder,
		OnProgress: func(index, total int) {
			s.progress.Put(events.Progress{Session: ss.id, Stage: events.StageReference, Index: index, Total: total})
		},
	}, ss.log)

	file := registry.Path(ss.referenceRoot, s.opts.RegistryFile)
	ids, err := loader.Load(ctx, file, ss.referenceRoot)
	switch {
	case errors.Is(err, registry.ErrReferencePool):
		ss.addError(err.Error())
	case err != nil:
		ss.log.Warn("failed to read registry, rebuilding from reference images",
			zap.String("file", file), zap.Error(err))
	}

	if len(ids) == 0 && !s.stopping(ctx) {
		ss.log.Info("checking reference images", zap.String("reference", ss.referenceRoot))
		ids, err = loader.Bootstrap(ctx, ss.referenceRoot)
		if err != nil {
			ss.addError(err.Error())
		}
		if len(ids) > 0 {
			if err := registry.Save(ids, ss.referenceRoot, file); err != nil {
				ss.log.Warn("failed to save registry", zap.String("file", file), zap.Error(err))
			}
		}
	}

	if len(ids) == 0 && !s.stopping(ctx) {
		ss.log.Warn(ErrMsgNoIdentities)
		ss.addError(ErrMsgNoIdentities)
	}
	if ids == nil {
		ids = registry.Identities{}
	}
	ss.identities = ids
	ss.log.Info(fmt.Sprintf("loaded %d known identities", len(ids)))
}

// enumerate lists the valid images under the input root in lexical order,
// skipping the output root and the staging area.
func (s *Sorter) enumerate(ss *session) []string {
	var images []string
	err := filepath.WalkDir(ss.inputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			ss.log.Warn("failed to read input entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		p, nerr := pathutil.Normalize(path, "")
		if nerr != nil {
			return nil
		}
		if d.IsDir() {
			if p != ss.inputRoot && (pathutil.Within(p, ss.outputRoot) || ss.staging.Contains(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !imaging.IsImageFile(d.Name()) {
			return nil
		}
		if ss.processor.IsValid(p) {
			images = append(images, p)
		}
		return nil
	})
	if err != nil {
		ss.log.Warn("failed to list input folder", zap.Error(err))
	}
	return images
}

// preprocess stages a resized copy of every image. The result keeps input
// order and holds only the survivors.
func (s *Sorter) preprocess(ctx context.Context, ss *session, images []string) []staged {
	total := len(images)
	ss.log.Info(fmt.Sprintf("preprocessing %d images with %d workers", total, s.opts.Workers))

	results := make([]*staged, total)
	err := workerpool.Run(ctx, s.opts.Workers, images, func(ctx context.Context, i int, path string) {
		if s.signal.IsCancelled() {
			return
		}
		dst := ss.staging.File(imaging.StagedName("pre", i+1, path))
		if !ss.processor.Preprocess(path, dst) {
			return
		}
		results[i] = &staged{original: path, path: dst}
		ss.log.Info(fmt.Sprintf("[%d/%d] preprocessed %s", i+1, total, filepath.Base(path)))
		s.progress.Put(events.Progress{Session: ss.id, Stage: events.StagePreprocess, Index: i + 1, Total: total})
	})
	if err != nil {
		ss.log.Error("preprocessing pool failed", zap.Error(err))
		ss.addError(fmt.Sprintf("parallel preprocessing failed: %v", err))
	}

	survivors := make([]staged, 0, total)
	for _, r := range results {
		if r != nil {
			survivors = append(survivors, *r)
		}
	}
	ss.log.Info(fmt.Sprintf("preprocessing finished: %d/%d valid images", len(survivors), total))

	if len(survivors) == 0 && !s.stopping(ctx) {
		ss.log.Warn(ErrMsgNoSurvivors)
		ss.addError(ErrMsgNoSurvivors)
	}
	return survivors
}

// classify embeds every staged image and copies its original into the
// folder of each matched identity, or the unknown folder.
func (s *Sorter) classify(ctx context.Context, ss *session, images []staged) {
	total := len(images)
	s.total.Store(int64(total))
	classifier := s.collaborator.Classifier(ss.identities.Embeddings())
	ss.log.Info(fmt.Sprintf("classifying %d images with %d workers", total, s.opts.Workers))

	err := workerpool.Run(ctx, s.opts.Workers, images, func(ctx context.Context, i int, img staged) {
		if s.signal.IsCancelled() {
			return
		}
		if !s.signal.Wait(ctx, s.opts.PausePoll) {
			return
		}
		defer func() {
			s.processed.Add(1)
			s.progress.Put(events.Progress{Session: ss.id, Stage: events.StageClassify, Index: i + 1, Total: total})
		}()
		s.classifyOne(ctx, ss, classifier, img, i+1, total)
	})
	if err != nil {
		ss.log.Error("classification pool failed", zap.Error(err))
		ss.addError(fmt.Sprintf("parallel classification failed: %v", err))
	}
}

func (s *Sorter) classifyOne(ctx context.Context, ss *session, classifier facematch.Classifier, img staged, index, total int) {
	name := filepath.Base(img.original)

	faces, err := s.collaborator.Embedder.Embed(ctx, img.path)
	if err != nil {
		ss.log.Error(fmt.Sprintf("[%d/%d] failed to process %s", index, total, name), zap.Error(err))
		return
	}

	var folders []string
	seen := make(map[string]bool)
	for _, face := range faces {
		for _, person := range classifier.Match(face) {
			if !seen[person] {
				seen[person] = true
				folders = append(folders, person)
			}
		}
	}
	if len(faces) == 0 {
		ss.log.Info(fmt.Sprintf("[%d/%d] no face in %s", index, total, name))
	}
	if len(folders) == 0 {
		folders = []string{s.opts.UnknownFolder}
	}

	for _, folder := range folders {
		if _, err := fileutil.CopyInto(img.original, filepath.Join(ss.outputRoot, folder)); err != nil {
			ss.log.Error(fmt.Sprintf("[%d/%d] failed to copy %s to %s", index, total, name, folder), zap.Error(err))
			continue
		}
		ss.log.Info(fmt.Sprintf("[%d/%d] %s copied to %s", index, total, name, folder))
	}
}

// finish removes the staging area, releases the lock and writes the report.
func (s *Sorter) finish(ctx context.Context, ss *session, rawOutput string) *Result {
	s.setState(StateReporting)

	cancelled := s.stopping(ctx)
	if cancelled {
		ss.log.Info("processing cancelled by user")
		ss.addError(ErrMsgCancelled)
	}

	if ss.staging != nil {
		if err := ss.staging.Remove(); err != nil {
			ss.log.Warn("failed to remove staging directory", zap.Error(err))
		}
	}
	if ss.lock != nil {
		// Removed while still held so no other session can lock the old file.
		if err := os.Remove(ss.lock.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
			ss.log.Warn("failed to remove output lock file", zap.Error(err))
		}
		if err := ss.lock.Unlock(); err != nil {
			ss.log.Warn("failed to release output lock", zap.Error(err))
		}
	}

	outputRoot := ss.outputRoot
	if outputRoot == "" {
		outputRoot = rawOutput
	}
	errs := ss.errorList()
	result := &Result{
		SessionID:  ss.id,
		Identities: ss.identities.Names(),
		Total:      s.Total(),
		Processed:  s.Processed(),
		Errors:     errs,
		Cancelled:  cancelled,
		ReportPath: s.opts.ReportFile,
	}

	summary, err := report.Generate(outputRoot, errs, s.opts.ReportFile, s.opts.Now())
	if err != nil {
		ss.log.Error("failed to write report", zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
	} else {
		ss.log.Info("report written", zap.String("file", s.opts.ReportFile))
	}
	result.Summary = summary

	if !cancelled && err == nil {
		ss.log.Info("session finished", zap.String("output", outputRoot))
	}
	_ = ss.log.Sync()

	s.mu.Lock()
	s.state = StateIdle
	s.log = s.logger
	s.mu.Unlock()
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(StateIdle)
	}
	return result
}
