// pkg/core/session.go
package core

import "time"

// Session describes one scaling run over a clip.
type Session struct {
	ID          uint
	ClipName    string
	FPS         float64
	HumanHeight float64
	Root        string
	StartTime   time.Time
	Bones       []BoneDef
	Scales      map[string]float64
}

// FrameRecord pairs a source frame with its scaled result.
// SessionID references Session.ID.
type FrameRecord struct {
	SessionID uint
	Index     int
	Time      time.Time
	Raw       Frame
	Scaled    Frame
}
