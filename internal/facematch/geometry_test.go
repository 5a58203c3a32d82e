package facematch

import (
	"math"
	"testing"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		bbox1    []float64
		bbox2    []float64
		expected float64
	}{
		{
			name:     "identical boxes",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{20, 20, 30, 30},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			bbox1:    []float64{0, 0, 20, 20},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 100.0 / 400.0, // intersection=100, union=400 (larger box)
		},
		{
			name:     "invalid bbox1",
			bbox1:    []float64{0, 0, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 0.0,
		},
		{
			name:     "touching edges",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{10, 0, 20, 10},
			expected: 0.0,
		},
		{
			name:     "nil boxes",
			bbox1:    nil,
			bbox2:    nil,
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.bbox1, tt.bbox2)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.bbox1, tt.bbox2, result, tt.expected)
			}
		})
	}
}

func TestFilterFaces(t *testing.T) {
	emb := Embedding{1, 0}
	faces := []Face{
		{Embedding: emb, BBox: []float64{0, 0, 100, 100}, DetScore: 0.8},
		{Embedding: emb, BBox: []float64{2, 2, 100, 100}, DetScore: 0.95}, // duplicate of the first
		{Embedding: emb, BBox: []float64{300, 300, 400, 400}, DetScore: 0.7},
		{Embedding: emb, BBox: []float64{500, 500, 600, 600}, DetScore: 0.2}, // low score
		{Embedding: nil, BBox: []float64{700, 700, 800, 800}, DetScore: 0.99}, // no embedding
		{Embedding: emb, DetScore: 0.6},                                        // no box
	}

	got := FilterFaces(faces, 0.5, 0.7)

	wantScores := []float64{0.95, 0.7, 0.6}
	if len(got) != len(wantScores) {
		t.Fatalf("FilterFaces returned %d faces, want %d: %+v", len(got), len(wantScores), got)
	}
	for i, want := range wantScores {
		if got[i].DetScore != want {
			t.Errorf("faces[%d].DetScore = %v, want %v", i, got[i].DetScore, want)
		}
	}
}

func TestFilterFaces_Empty(t *testing.T) {
	if got := FilterFaces(nil, 0.5, 0.7); len(got) != 0 {
		t.Errorf("expected no faces, got %v", got)
	}
}
