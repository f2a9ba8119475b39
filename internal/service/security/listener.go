package security

import (
	domain "home-sentinel/internal/domain/security"
)

// StatusListener observes alarm status changes.
type StatusListener interface {
	// OnAlarmStatusChanged is called synchronously after the alarm status
	// has been persisted.
	OnAlarmStatusChanged(status domain.AlarmStatus)
}

// CatDetectionListener observes image analysis results.
type CatDetectionListener interface {
	// OnCatDetected is called synchronously with the result of every
	// analyzed frame, whether or not the alarm status changed.
	OnCatDetected(detected bool)
}

// AddStatusListener registers a status listener. Adding the same listener
// twice is a no-op; iteration order over listeners is unspecified.
func (s *Service) AddStatusListener(listener StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statusListeners[listener] = struct{}{}
}

// RemoveStatusListener unregisters a status listener. Removing an absent
// listener is a no-op.
func (s *Service) RemoveStatusListener(listener StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.statusListeners, listener)
}

// AddCatDetectionListener registers a cat detection listener.
func (s *Service) AddCatDetectionListener(listener CatDetectionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.catListeners[listener] = struct{}{}
}

// RemoveCatDetectionListener unregisters a cat detection listener.
func (s *Service) RemoveCatDetectionListener(listener CatDetectionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.catListeners, listener)
}

// notifyStatus fans an alarm status change out to the registered listeners.
func (s *Service) notifyStatus(status domain.AlarmStatus) {
	for _, listener := range s.snapshotStatusListeners() {
		listener.OnAlarmStatusChanged(status)
	}
}

// notifyCatDetected fans an image analysis result out to the registered listeners.
func (s *Service) notifyCatDetected(detected bool) {
	for _, listener := range s.snapshotCatListeners() {
		listener.OnCatDetected(detected)
	}
}

// snapshotStatusListeners copies the registry so callbacks run outside the lock.
func (s *Service) snapshotStatusListeners() []StatusListener {
	s.mu.Lock()
	defer s.mu.Unlock()

	listeners := make([]StatusListener, 0, len(s.statusListeners))
	for listener := range s.statusListeners {
		listeners = append(listeners, listener)
	}

	return listeners
}

// snapshotCatListeners copies the registry so callbacks run outside the lock.
func (s *Service) snapshotCatListeners() []CatDetectionListener {
	s.mu.Lock()
	defer s.mu.Unlock()

	listeners := make([]CatDetectionListener, 0, len(s.catListeners))
	for listener := range s.catListeners {
		listeners = append(listeners, listener)
	}

	return listeners
}
