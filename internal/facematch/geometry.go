package facematch

// BBoxArea returns the area of a [x1, y1, x2, y2] box, 0 for malformed boxes.
func BBoxArea(bbox []float64) float64 {
	if len(bbox) != 4 {
		return 0
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// LargestBox returns the index of the box with the largest area, or -1 when boxes is empty.
// Equal areas keep the earliest index.
func LargestBox(boxes [][]float64) int {
	best := -1
	bestArea := -1.0
	for i, b := range boxes {
		if a := BBoxArea(b); a > bestArea {
			best = i
			bestArea = a
		}
	}
	return best
}
