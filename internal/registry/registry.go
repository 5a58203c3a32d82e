// Package registry loads, bootstraps and saves the set of known identities.
// The registry file records only which reference images belong to whom;
// embeddings are recomputed from those images on every load.
package registry

import (
	"slices"
	"strings"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// Identity is a known person and the embeddings of their reference faces.
type Identity struct {
	Name       string
	Embeddings []facematch.Embedding
	Images     []string // reference images that contributed embeddings
}

// Identities maps a name to its identity.
type Identities map[string]*Identity

// Names returns the identity names in sorted order.
func (ids Identities) Names() []string {
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Embeddings returns name -> embeddings, the form classifiers are built from.
func (ids Identities) Embeddings() map[string][]facematch.Embedding {
	out := make(map[string][]facematch.Embedding, len(ids))
	for name, id := range ids {
		out[name] = id.Embeddings
	}
	return out
}

func (ids Identities) add(name, image string, embeddings []facematch.Embedding) {
	id, ok := ids[name]
	if !ok {
		id = &Identity{Name: name}
		ids[name] = id
	}
	id.Embeddings = append(id.Embeddings, embeddings...)
	if !slices.Contains(id.Images, image) {
		id.Images = append(id.Images, image)
	}
}

// ValidName reports whether name can be used as an output folder: a single
// path element that does not collide with the unknown folder.
func ValidName(name, unknownFolder string) bool {
	switch name {
	case "", ".", "..", unknownFolder:
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
