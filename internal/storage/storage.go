// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/OCAP2/skelscale/pkg/core"
)

// ErrUnknownBackend is returned by NewBackend for an unsupported storage type.
var ErrUnknownBackend = errors.New("unknown storage type")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (StartSession assigns ID to the passed pointer)
	StartSession(s *core.Session) error
	EndSession() error

	// Frame recording
	RecordFrame(r *core.FrameRecord) error
}

// Exportable is an optional interface for storage backends that produce a
// file once a session ends.
type Exportable interface {
	GetExportedFilePath() string
}
