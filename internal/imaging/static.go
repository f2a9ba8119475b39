package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
)

// StaticDetector is an oracle with a fixed answer. It stands in for the
// external classification service in tests and in deployments without one.
type StaticDetector struct {
	frameCache

	// mu protects the answer.
	mu sync.RWMutex
	// cat is the answer returned for every frame.
	cat bool
	// confidence is reported for the synthetic prediction when cat is true.
	confidence float64
}

// NewStaticDetector creates a detector that always answers with cat.
func NewStaticDetector(cat bool) *StaticDetector {
	return &StaticDetector{
		cat:        cat,
		confidence: 1,
	}
}

// SetAnswer replaces the fixed answer for subsequent frames.
func (d *StaticDetector) SetAnswer(cat bool, confidence float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cat = cat
	d.confidence = confidence
}

// ContainsCat returns the fixed answer, honoring the confidence threshold.
func (d *StaticDetector) ContainsCat(_ context.Context, img image.Image, minConfidence float64) (bool, error) {
	d.mu.RLock()
	cat, confidence := d.cat, d.confidence
	d.mu.RUnlock()

	var predictions []Prediction
	if cat {
		bounds := img.Bounds()
		predictions = []Prediction{{
			Label:      catLabel,
			Confidence: confidence,
			XMax:       bounds.Dx(),
			YMax:       bounds.Dy(),
		}}
	}

	frame := new(bytes.Buffer)
	if err := jpeg.Encode(frame, img, nil); err != nil {
		return false, fmt.Errorf("encode frame: %w", err)
	}

	d.store(frame.Bytes(), predictions)

	return hasCat(predictions, minConfidence), nil
}
