package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/voxnote/tasksync/internal/client/storage"
	"github.com/voxnote/tasksync/internal/models"
)

var (
	// BoltDB bucket names: the six logical collections
	bucketTasks     = []byte("tasks")
	bucketEvents    = []byte("events")
	bucketQueue     = []byte("queue")
	bucketArchive   = []byte("archive")
	bucketMetadata  = []byte("metadata")
	bucketViewState = []byte("viewstate")
)

// Metadata keys maintained by the store itself
const (
	keyVectorClock        = "vector_clock"
	keyLastSyncTime       = "last_sync_time"
	keyLastCompactionTime = "last_compaction_time"
)

// Storage represents BoltDB durable store implementation for one tab.
// The database is opened lazily on first use; concurrent callers share
// a single initialization in flight.
type Storage struct {
	db      *bbolt.DB
	path    string
	nodeID  string
	openErr error
	once    sync.Once
	mu      sync.Mutex
}

// New creates a BoltDB storage instance for the given database path.
// nodeID identifies this client in vector clocks stamped on events.
// The file is not touched until the first operation.
func New(path, nodeID string) *Storage {
	return &Storage{
		path:   path,
		nodeID: nodeID,
	}
}

// handle opens the database on first use and returns it.
// An initialization failure is remembered and surfaced to every caller.
func (s *Storage) handle() (*bbolt.DB, error) {
	s.once.Do(func() {
		db, err := bbolt.Open(s.path, 0600, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			s.openErr = fmt.Errorf("failed to open boltdb: %w", err)
			return
		}

		// Инициализируем buckets
		if err := initBuckets(db); err != nil {
			_ = db.Close()
			s.openErr = fmt.Errorf("failed to initialize buckets: %w", err)
			return
		}

		s.mu.Lock()
		s.db = db
		s.mu.Unlock()
	})

	if s.openErr != nil {
		return nil, s.openErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}
	return s.db, nil
}

// NodeID returns the node identifier this store stamps into clocks
func (s *Storage) NodeID() string {
	return s.nodeID
}

// Close closes the database connection
func (s *Storage) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}

// initBuckets создает все шесть коллекций если они не существуют
func initBuckets(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets() {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func allBuckets() [][]byte {
	return [][]byte{
		bucketTasks,
		bucketEvents,
		bucketQueue,
		bucketArchive,
		bucketMetadata,
		bucketViewState,
	}
}

// ClearAll wipes every collection. Used only for explicit reset.
func (s *Storage) ClearAll(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets() {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return fmt.Errorf("failed to delete bucket %s: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to recreate bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear transaction failed: %w", err)
	}

	return nil
}

// Stats returns counts across all collections plus last-sync and
// last-compaction metadata
func (s *Storage) Stats(ctx context.Context) (*models.StoreStats, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	stats := &models.StoreStats{}

	err = db.View(func(tx *bbolt.Tx) error {
		stats.Tasks = tx.Bucket(bucketTasks).Stats().KeyN
		stats.Events = tx.Bucket(bucketEvents).Stats().KeyN
		stats.QueueEntries = tx.Bucket(bucketQueue).Stats().KeyN
		stats.Archives = tx.Bucket(bucketArchive).Stats().KeyN
		stats.ViewStateKeys = tx.Bucket(bucketViewState).Stats().KeyN

		// Pending считаем сканом: отдельного индекса по статусу нет
		err := tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var event models.Event
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			if event.SyncStatus == models.SyncPending {
				stats.PendingEvents++
			}
			return nil
		})
		if err != nil {
			return err
		}

		meta := tx.Bucket(bucketMetadata)
		if t, ok := readTime(meta, keyLastSyncTime); ok {
			stats.LastSyncAt = &t
		}
		if t, ok := readTime(meta, keyLastCompactionTime); ok {
			stats.LastCompactionAt = &t
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}

	return stats, nil
}

// itob converts a bucket sequence number to a sortable big-endian key
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// writeTime stores a timestamp as big-endian unix nanoseconds
func writeTime(bucket *bbolt.Bucket, key string, t time.Time) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return bucket.Put([]byte(key), buf)
}

// readTime loads a timestamp stored by writeTime
func readTime(bucket *bbolt.Bucket, key string) (time.Time, bool) {
	raw := bucket.Get([]byte(key))
	if len(raw) != 8 {
		return time.Time{}, false
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(raw))), true
}
