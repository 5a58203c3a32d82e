// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Image processing constants
const (
	// MaxImageWidth is the default maximum width of a staged image
	MaxImageWidth = 2560

	// MaxImageHeight is the default maximum height of a staged image
	MaxImageHeight = 1440

	// JPEGQuality is the default quality for re-encoded staged images
	JPEGQuality = 90
)

// Face matching constants
const (
	// DefaultDistanceThreshold is the default maximum cosine distance for face matching
	// Lower values = stricter matching
	DefaultDistanceThreshold = 0.5

	// DefaultEuclideanThreshold is the default tolerance when the euclidean metric is selected
	DefaultEuclideanThreshold = 0.4

	// MinDetectionScore drops faces the detector is unsure about
	MinDetectionScore = 0.5

	// DuplicateFaceIoU is the box overlap above which two detections count as one face
	DuplicateFaceIoU = 0.7

	// HNSWMaxNeighbors is the M parameter of the optional identity index graph
	HNSWMaxNeighbors = 16

	// HNSWSearchLimit is the number of neighbours fetched per index query
	HNSWSearchLimit = 10
)

// Pipeline constants
const (
	// PausePollInterval is how often a paused worker re-checks the control signal
	PausePollInterval = 100 * time.Millisecond

	// StaleStagingAge is the age after which leftover staging directories are removed
	StaleStagingAge = 24 * time.Hour

	// UnknownFolder is the output folder for images without an identity match
	UnknownFolder = "unknown"

	// RegistryFileName is the default identity registry file inside the reference folder
	RegistryFileName = "known_faces.json"

	// ReportFileName is the default report location (relative to the working directory)
	ReportFileName = "relatorio.txt"

	// LockFileName is the session lock file created in the output folder
	LockFileName = ".face-sorter.lock"

	// StagingPrefix prefixes every session staging directory
	StagingPrefix = "face-sorter-"
)

// EmbeddingTimeout is the default per-request timeout for the embedding server
const EmbeddingTimeout = 60 * time.Second
