// Package imaging provides the cat detection oracle consulted by the
// security controller.
//
// The Detector interface answers a single question: does this frame contain
// a cat at or above a confidence threshold. HTTPDetector delegates to an
// external classification service; StaticDetector gives fixed answers for
// tests and offline runs. Both remember the last frame analyzed so the
// monitor can serve it with detection markup.
package imaging
