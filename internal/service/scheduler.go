package service

import "time"

// Scheduler planifie une tâche différée et retourne sa fonction d'annulation
type Scheduler interface {
	Schedule(delay time.Duration, task func()) (cancel func())
}

// TimerScheduler implémente Scheduler avec time.AfterFunc
type TimerScheduler struct{}

// NewTimerScheduler crée le planificateur par défaut
func NewTimerScheduler() TimerScheduler {
	return TimerScheduler{}
}

// Schedule implémente Scheduler
func (TimerScheduler) Schedule(delay time.Duration, task func()) func() {
	timer := time.AfterFunc(delay, task)
	return func() { timer.Stop() }
}
