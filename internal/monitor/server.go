package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"

	domain "home-sentinel/internal/domain/security"
	"home-sentinel/internal/imaging"
	"home-sentinel/internal/logger"
	"home-sentinel/internal/service/security"
)

const (
	// readHeaderTimeout bounds slow clients on the monitor port.
	readHeaderTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 5 * time.Second
)

// FrameSource provides the last analyzed camera frame. Both detector
// implementations satisfy it.
type FrameSource interface {
	LastFrame() *imaging.Frame
}

// Status is the JSON snapshot served at /status and consumed by the checker.
type Status struct {
	// AlarmStatus is the current alert level.
	AlarmStatus domain.AlarmStatus `json:"alarm_status"`
	// ArmingStatus is the current monitoring mode.
	ArmingStatus domain.ArmingStatus `json:"arming_status"`
	// CatDetected is the result of the last image analysis.
	CatDetected bool `json:"cat_detected"`
	// Sensors is the known sensor set in name order.
	Sensors []*domain.Sensor `json:"sensors"`
}

// Server is the HTTP monitor surface.
type Server struct {
	service *security.Service
	frames  FrameSource
	srv     *http.Server
}

// NewServer builds a monitor server listening on addr. frames may be nil
// when no camera is configured.
func NewServer(addr string, service *security.Service, frames FrameSource) *Server {
	s := &Server{
		service: service,
		frames:  frames,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/frame", s.handleFrame)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Start serves in the background until Stop is called.
func (s *Server) Start(ctx context.Context) {
	go func() {
		logger.InfoKV(ctx, "monitor server listening", "address", s.srv.Addr)

		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV(ctx, "monitor server failed", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shut down monitor server: %w", err)
	}

	return nil
}

// handleStatus serves the controller state snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	ctx := r.Context()

	alarm, err := s.service.AlarmStatus(ctx)
	if err != nil {
		s.internalError(w, r, err)

		return
	}

	arming, err := s.service.ArmingStatus(ctx)
	if err != nil {
		s.internalError(w, r, err)

		return
	}

	cat, err := s.service.CatDetected(ctx)
	if err != nil {
		s.internalError(w, r, err)

		return
	}

	sensors, err := s.service.Sensors(ctx)
	if err != nil {
		s.internalError(w, r, err)

		return
	}

	domain.SortSensors(sensors)

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(Status{
		AlarmStatus:  alarm,
		ArmingStatus: arming,
		CatDetected:  cat,
		Sensors:      sensors,
	}); err != nil {
		logger.WarnKV(ctx, "failed to write status response", "error", err)
	}
}

// handleFrame serves the last analyzed camera frame with detection regions
// drawn in.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	if s.frames == nil {
		http.Error(w, "no camera configured", http.StatusNotFound)

		return
	}

	frame := s.frames.LastFrame()
	if frame == nil {
		http.Error(w, "no frame analyzed yet", http.StatusNotFound)

		return
	}

	src, err := jpeg.Decode(bytes.NewReader(frame.JPEG))
	if err != nil {
		s.internalError(w, r, fmt.Errorf("decode cached frame: %w", err))

		return
	}

	marked := MarkupImage(src, frame.Predictions)

	var buf bytes.Buffer
	if err = jpeg.Encode(&buf, marked, nil); err != nil {
		s.internalError(w, r, fmt.Errorf("encode frame: %w", err))

		return
	}

	w.Header().Set("Content-Type", "image/jpeg")

	if _, err = w.Write(buf.Bytes()); err != nil {
		logger.WarnKV(r.Context(), "failed to write frame response", "error", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logger.ErrorKV(r.Context(), "monitor request failed",
		"path", r.URL.Path,
		"error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
