package sync

import (
	"sync"
	"time"
)

// TimerScheduler is the in-process Scheduler: one cancellable time.AfterFunc
// per task id. Scheduling a task id that is already pending replaces it.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTimerScheduler creates the scheduler
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[string]*time.Timer)}
}

// ScheduleOnce runs task after delay. The task id can be used to cancel the
// run before it fires.
func (s *TimerScheduler) ScheduleOnce(delay time.Duration, taskID string, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[taskID]; ok {
		old.Stop()
	}
	s.timers[taskID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, taskID)
		s.mu.Unlock()
		task()
	})
}

// Cancel stops a pending task; a no-op if it already fired or never existed
func (s *TimerScheduler) Cancel(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[taskID]; ok {
		t.Stop()
		delete(s.timers, taskID)
	}
}

// Stop cancels every pending task; used during shutdown
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
