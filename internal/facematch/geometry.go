package facematch

import (
	"slices"
)

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// FilterFaces drops detections scoring below minScore and collapses
// detections whose boxes overlap by more than maxIoU, keeping the one with
// the higher score. Faces without a box are never treated as duplicates.
// The result is ordered by descending detection score.
func FilterFaces(faces []Face, minScore, maxIoU float64) []Face {
	kept := make([]Face, 0, len(faces))
	for _, f := range faces {
		if len(f.Embedding) == 0 || f.DetScore < minScore {
			continue
		}
		kept = append(kept, f)
	}

	slices.SortStableFunc(kept, func(a, b Face) int {
		switch {
		case a.DetScore > b.DetScore:
			return -1
		case a.DetScore < b.DetScore:
			return 1
		}
		return 0
	})

	result := kept[:0]
	for _, f := range kept {
		duplicate := slices.ContainsFunc(result, func(r Face) bool {
			return ComputeIoU(r.BBox, f.BBox) > maxIoU
		})
		if !duplicate {
			result = append(result, f)
		}
	}
	return result
}
