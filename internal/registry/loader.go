package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/imaging"
	"github.com/kozaktomas/face-sorter/internal/pathutil"
	"github.com/kozaktomas/face-sorter/internal/workerpool"
)

// ErrReferencePool marks a failure of the reference embedding worker pool,
// as opposed to a problem with the registry file itself.
var ErrReferencePool = errors.New("parallel reference embedding failed")

// Path returns the registry file for a reference folder. An empty file
// selects the default name; relative paths resolve against the reference
// folder.
func Path(referenceRoot, file string) string {
	if file == "" {
		file = constants.RegistryFileName
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(referenceRoot, file)
}

// Options configures a Loader.
type Options struct {
	StagingDir    string // where preprocessed reference copies are written
	Workers       int
	UnknownFolder string
	// OnProgress is called from worker goroutines after each reference image
	// is embedded, with its 1-based position and the total.
	OnProgress func(index, total int)
}

// Loader turns reference images into identities.
type Loader struct {
	embedder  facematch.Embedder
	processor *imaging.Processor
	opts      Options
	logger    *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(embedder facematch.Embedder, processor *imaging.Processor, opts Options, logger *zap.Logger) *Loader {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.UnknownFolder == "" {
		opts.UnknownFolder = constants.UnknownFolder
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{embedder: embedder, processor: processor, opts: opts, logger: logger}
}

type reference struct {
	name string
	path string
}

// Load reads registryFile and embeds every listed image. Relative paths
// resolve against referenceRoot, and images outside it are skipped. A
// missing file yields an empty registry and no error. Names whose images
// all fail are dropped with a warning.
func (l *Loader) Load(ctx context.Context, registryFile, referenceRoot string) (Identities, error) {
	rec, err := ReadRecord(registryFile)
	if errors.Is(err, os.ErrNotExist) {
		return Identities{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	slices.Sort(names)

	var refs []reference
	for _, raw := range names {
		name := facematch.NormalizeName(raw)
		if !ValidName(name, l.opts.UnknownFolder) {
			l.logger.Warn("ignoring invalid identity name", zap.String("name", raw))
			continue
		}
		for _, p := range rec[raw] {
			if !filepath.IsAbs(p) {
				p = filepath.Join(referenceRoot, filepath.FromSlash(p))
			}
			path, err := pathutil.Normalize(p, referenceRoot)
			if err != nil {
				l.logger.Warn("ignoring reference image", zap.String("name", name), zap.Error(err))
				continue
			}
			refs = append(refs, reference{name: name, path: path})
		}
	}

	ids, err := l.embed(ctx, refs)
	for _, raw := range names {
		name := facematch.NormalizeName(raw)
		if _, ok := ids[name]; !ok && ValidName(name, l.opts.UnknownFolder) {
			l.logger.Warn("no valid embeddings for identity", zap.String("name", name))
		}
	}
	return ids, err
}

// Bootstrap builds identities from the image files directly inside
// referenceRoot. The name is the file stem up to the first underscore, so
// alice_1.jpg and alice_2.jpg both describe alice.
func (l *Loader) Bootstrap(ctx context.Context, referenceRoot string) (Identities, error) {
	entries, err := os.ReadDir(referenceRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list reference folder: %w", err)
	}

	var refs []reference
	for _, entry := range entries {
		if entry.IsDir() || !imaging.IsImageFile(entry.Name()) {
			continue
		}
		name := facematch.NameFromFile(entry.Name())
		if !ValidName(name, l.opts.UnknownFolder) {
			l.logger.Warn("ignoring reference image with invalid name", zap.String("file", entry.Name()))
			continue
		}
		path, err := pathutil.Normalize(filepath.Join(referenceRoot, entry.Name()), referenceRoot)
		if err != nil {
			l.logger.Warn("ignoring reference image", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		refs = append(refs, reference{name: name, path: path})
	}

	return l.embed(ctx, refs)
}

// embed stages and embeds refs in parallel and groups the results by name,
// keeping the order of refs within each identity.
func (l *Loader) embed(ctx context.Context, refs []reference) (Identities, error) {
	results := make([][]facematch.Embedding, len(refs))
	total := len(refs)

	poolErr := workerpool.Run(ctx, l.opts.Workers, refs, func(ctx context.Context, i int, ref reference) {
		staged := filepath.Join(l.opts.StagingDir, imaging.StagedName("ref", i+1, ref.path))
		if !l.processor.Preprocess(ref.path, staged) {
			return
		}
		embeddings, err := l.embedder.Embed(ctx, staged)
		if err != nil {
			l.logger.Warn("failed to embed reference image",
				zap.String("name", ref.name), zap.String("path", ref.path), zap.Error(err))
			return
		}
		if len(embeddings) == 0 {
			l.logger.Warn("no face found in reference image",
				zap.String("name", ref.name), zap.String("path", ref.path))
			return
		}
		results[i] = embeddings
		if l.opts.OnProgress != nil {
			l.opts.OnProgress(i+1, total)
		}
	})

	ids := Identities{}
	for i, ref := range refs {
		if len(results[i]) > 0 {
			ids.add(ref.name, ref.path, results[i])
		}
	}

	if poolErr != nil {
		l.logger.Error("reference embedding failed", zap.Error(poolErr))
		return ids, fmt.Errorf("%w: %w", ErrReferencePool, poolErr)
	}
	return ids, nil
}

// Save writes the image provenance of ids to registryFile. Paths inside
// referenceRoot are stored relative to it. Embeddings are never written.
func Save(ids Identities, referenceRoot, registryFile string) error {
	rec := make(Record, len(ids))
	for name, id := range ids {
		images := make([]string, 0, len(id.Images))
		for _, img := range id.Images {
			images = append(images, relativeTo(referenceRoot, img))
		}
		rec[name] = images
	}
	return WriteRecord(registryFile, rec)
}

func relativeTo(root, path string) string {
	if root != "" && pathutil.Within(path, root) {
		if rel, err := filepath.Rel(root, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}
