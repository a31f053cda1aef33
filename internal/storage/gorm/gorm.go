// Package gormstorage implements the storage backend on GORM with an internal
// queue and a background DB writer goroutine. It serves both PostgreSQL and
// SQLite connections.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/skelscale/internal/database"
	"github.com/OCAP2/skelscale/internal/logging"
	"github.com/OCAP2/skelscale/internal/model"
	"github.com/OCAP2/skelscale/internal/queue"
	"github.com/OCAP2/skelscale/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultBatchSize     = 500
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
	// FlushInterval is the writer period; zero means two seconds.
	FlushInterval time.Duration
	// BatchSize caps rows per insert transaction; zero means 500.
	BatchSize int
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	frames    *queue.Queue[model.FrameRecord]
	sessionID atomic.Uint64
	written   atomic.Int64
	root      atomic.Value // string

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	b := &Backend{deps: deps}
	b.root.Store("")
	return b
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init creates the write queue, runs schema migration, and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	b.frames = queue.New[model.FrameRecord]()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		db, err := database.GetPostgresDB()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.deps.LogManager.WriteLog("setupDB", "Migrating schema", "INFO")
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.startDBWriter()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return b.Flush()
}

// StartSession inserts the session and its bones, and assigns the session ID.
func (b *Backend) StartSession(s *core.Session) error {
	db := b.deps.DB
	log := b.deps.LogManager

	gormSession, err := model.SessionToModel(s)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&gormSession).Error; err != nil {
			return fmt.Errorf("failed to insert new session: %w", err)
		}
		bones := model.BonesToModel(gormSession.ID, s)
		if len(bones) > 0 {
			if err := tx.Create(&bones).Error; err != nil {
				return fmt.Errorf("failed to insert bones: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.WriteLog("StartSession", err.Error(), "ERROR")
		return err
	}

	// Assign DB-generated ID back to the core type
	s.ID = gormSession.ID

	b.sessionID.Store(uint64(gormSession.ID))
	b.root.Store(s.Root)
	b.written.Store(0)
	return nil
}

// RecordFrame converts and queues a frame record.
func (b *Backend) RecordFrame(r *core.FrameRecord) error {
	gormObj, err := model.FrameRecordToModel(r, b.root.Load().(string))
	if err != nil {
		return err
	}
	b.frames.Push(gormObj)
	return nil
}

// EndSession flushes pending frames and stamps the session with its frame
// count and end time.
func (b *Backend) EndSession() error {
	if err := b.Flush(); err != nil {
		return err
	}

	id := uint(b.sessionID.Load())
	if id == 0 {
		return fmt.Errorf("no active session")
	}

	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Updates(map[string]any{
		"frame_count": b.written.Load(),
		"end_time":    time.Now().UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close session %d: %w", id, err)
	}
	b.sessionID.Store(0)
	return nil
}

// Pending returns the number of queued frames not yet written.
func (b *Backend) Pending() int {
	if b.frames == nil {
		return 0
	}
	return b.frames.Len()
}

// Flush writes every queued frame now.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.frames == nil || b.frames.Empty() {
		return nil
	}

	sessionID := uint(b.sessionID.Load())
	stamp := func(items []model.FrameRecord) {
		for i := range items {
			if items[i].SessionID == 0 {
				items[i].SessionID = sessionID
			}
		}
	}

	queued := b.frames.Len()
	start := time.Now()
	n, err := writeQueue(b.deps.DB, b.frames, b.deps.BatchSize, "frame records", b.deps.LogManager.WriteLog, stamp)
	b.written.Add(int64(n))

	if sessionID != 0 {
		perf := model.WriterPerformance{
			Time:                time.Now().UTC(),
			SessionID:           sessionID,
			QueueLength:         queued,
			Written:             n,
			LastWriteDurationMs: float32(time.Since(start).Seconds() * 1000),
		}
		if perr := b.deps.DB.Create(&perf).Error; perr != nil {
			b.deps.LogManager.WriteLog(":DB:WRITER:", fmt.Sprintf("Error recording writer performance: %v", perr), "WARN")
		}
	}
	return err
}

// writeQueue drains a queue into the database in batches, one transaction
// per batch. A failed batch is pushed back and the drain stops.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], batchSize int, name string, log func(string, string, string), prepare func([]T)) (int, error) {
	written := 0
	for !q.Empty() {
		items := q.PopBatch(batchSize)
		if prepare != nil {
			prepare(items)
		}

		tx := db.Begin()
		if err := tx.Create(&items).Error; err != nil {
			log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
			tx.Rollback()
			q.Push(items...)
			return written, fmt.Errorf("failed to write %s: %w", name, err)
		}
		if err := tx.Commit().Error; err != nil {
			q.Push(items...)
			return written, fmt.Errorf("failed to commit %s: %w", name, err)
		}
		written += len(items)
	}
	return written, nil
}

// startDBWriter starts the background goroutine that periodically drains the queue into the DB.
func (b *Backend) startDBWriter() {
	ticker := time.NewTicker(b.deps.FlushInterval)

	go func() {
		defer close(b.done)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				if err := b.Flush(); err != nil {
					b.deps.LogManager.WriteLog(":DB:WRITER:", err.Error(), "ERROR")
				}
			}
		}
	}()
}
