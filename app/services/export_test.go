package services

import "time"

// SetClock replaces the time source of the reset flow.
func (s *PasswordResetService) SetClock(now func() time.Time) { s.now = now }
