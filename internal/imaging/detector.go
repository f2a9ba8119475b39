package imaging

import (
	"context"
	"image"
	"sync"
)

// Prediction is a single labeled region reported by a classification service.
type Prediction struct {
	// Label is the object class, e.g. "cat".
	Label string `json:"label"`
	// Confidence is the classifier's certainty in the 0..1 range.
	Confidence float64 `json:"confidence"`
	// YMin is the top edge of the bounding box.
	YMin int `json:"y_min"`
	// XMin is the left edge of the bounding box.
	XMin int `json:"x_min"`
	// XMax is the right edge of the bounding box.
	XMax int `json:"x_max"`
	// YMax is the bottom edge of the bounding box.
	YMax int `json:"y_max"`
}

// Detector is the oracle deciding whether an image shows a cat.
type Detector interface {
	// ContainsCat reports whether the image contains a cat with confidence
	// at or above minConfidence (0..1).
	ContainsCat(ctx context.Context, img image.Image, minConfidence float64) (bool, error)
}

// catLabel is the object class the controller cares about.
const catLabel = "cat"

// Frame is an analyzed camera frame kept for the monitor surface.
type Frame struct {
	// JPEG is the encoded frame as it was analyzed.
	JPEG []byte
	// Predictions are the regions the classifier reported for the frame.
	Predictions []Prediction
}

// frameCache remembers the last analyzed frame. It is embedded by the
// detector implementations.
type frameCache struct {
	// mu protects the frame.
	mu sync.RWMutex
	// frame is the last analyzed frame, nil before the first analysis.
	frame *Frame
}

// store replaces the cached frame.
func (c *frameCache) store(jpegData []byte, predictions []Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frame = &Frame{
		JPEG:        jpegData,
		Predictions: predictions,
	}
}

// LastFrame returns the most recently analyzed frame, or nil when no frame
// has been analyzed yet.
func (c *frameCache) LastFrame() *Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.frame
}

// hasCat scans predictions for the cat label at or above minConfidence.
func hasCat(predictions []Prediction, minConfidence float64) bool {
	for _, p := range predictions {
		if p.Label == catLabel && p.Confidence >= minConfidence {
			return true
		}
	}

	return false
}
