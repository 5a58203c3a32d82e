// Package facematch defines the face embedding contract used by the pipeline
// and the distance metrics that decide whether two faces belong to the same
// person.
package facematch

import "context"

// Embedding is a fixed-length face descriptor. Treat it as immutable.
type Embedding []float32

// Face is one detected face.
type Face struct {
	Embedding Embedding
	BBox      []float64 // [x1, y1, x2, y2] in pixels
	DetScore  float64
}

// Embedder returns one embedding per face found in the image at path.
// An image without faces yields an empty slice and no error.
type Embedder interface {
	Embed(ctx context.Context, path string) ([]Embedding, error)
}

// Matcher decides whether candidate belongs to the identity described by known.
type Matcher interface {
	Matches(known []Embedding, candidate Embedding, tolerance float64) bool
}

// Classifier returns the names of every identity a face matches, sorted.
type Classifier interface {
	Match(candidate Embedding) []string
}

// Collaborator bundles everything the pipeline needs from the face model.
type Collaborator struct {
	Embedder  Embedder
	Matcher   Matcher
	Tolerance float64
	UseIndex  bool // search an HNSW index instead of scanning every identity
}

// Classifier builds a classifier over the given identities.
func (c Collaborator) Classifier(known map[string][]Embedding) Classifier {
	if c.UseIndex {
		return NewIndex(known, c.Tolerance)
	}
	m := c.Matcher
	if m == nil {
		m = CosineMatcher{}
	}
	return NewLinear(known, m, c.Tolerance)
}
