package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Bone{},
	&FrameRecord{},
	&WriterPerformance{},
}

// Session is one retargeting run over a clip
type Session struct {
	gorm.Model
	ClipName    string         `json:"clipName" gorm:"size:200;index:idx_session_clip_name"`
	FPS         float64        `json:"fps"`
	HumanHeight float64        `json:"humanHeight"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     time.Time      `json:"endTime" gorm:"default:NULL"`
	FrameCount  int            `json:"frameCount" gorm:"default:0"`
	ScaleTable  datatypes.JSON `json:"scaleTable" gorm:"default:'{}'"` // bone -> factor at session start
}

func (*Session) TableName() string {
	return "sessions"
}

// Bone is one entry of the session skeleton
type Bone struct {
	ID        uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint    `json:"sessionId" gorm:"index:idx_bone_session_id"`
	Session   Session `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Name      string  `json:"name" gorm:"size:64"`
	Parent    string  `json:"parent" gorm:"size:64"` // empty for the root
	Ordinal   int     `json:"ordinal"`               // position in parent-first traversal
	OffsetX   float64 `json:"offsetX"`
	OffsetY   float64 `json:"offsetY"`
	OffsetZ   float64 `json:"offsetZ"`
	Scale     float64 `json:"scale" gorm:"default:1"`
}

func (*Bone) TableName() string {
	return "bones"
}

// FrameRecord stores one raw frame next to its scaled result
type FrameRecord struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time"`
	SessionID  uint      `json:"sessionId" gorm:"index:idx_framerecord_session_id"`
	Session    Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	FrameIndex int       `json:"frameIndex" gorm:"index:idx_frame_index"`

	RootPosition geom.Point     `json:"rootPosition"` // XYZ of the root bone, unscaled
	Raw          datatypes.JSON `json:"raw"`          // bone -> {p, q}
	Scaled       datatypes.JSON `json:"scaled"`       // bone -> {p, q}
}

func (*FrameRecord) TableName() string {
	return "frame_records"
}

// WriterPerformance samples the storage writer after each flush
type WriterPerformance struct {
	Time                time.Time `json:"time" gorm:"index:idx_time"`
	SessionID           uint      `json:"sessionId" gorm:"index:idx_writerperformance_session_id"`
	Session             Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	QueueLength         int       `json:"queueLength"`
	Written             int       `json:"written"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

func (*WriterPerformance) TableName() string {
	return "writer_performances"
}
