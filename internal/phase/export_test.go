package phase

import "time"

// SetClock replaces the writer's wall clock.
func (w *Writer) SetClock(now func() time.Time) { w.now = now }
