// Package audit persists committed protocol events in a hash-chained table.
package audit

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
)

// ErrChainBroken reports a record whose hash does not match its contents or
// predecessor.
var ErrChainBroken = errors.New("audit: hash chain broken")

// genesisHash anchors the first record.
var genesisHash = strings.Repeat("0", 64)

// Record is one committed event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Index      uint64    `gorm:"column:seq;uniqueIndex;not null"`
	Type       string    `gorm:"index;not null"`
	Attributes string    `gorm:"type:text;not null"`
	PrevHash   string    `gorm:"size:64;not null"`
	Hash       string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt  time.Time
}

// TableName pins the table name.
func (Record) TableName() string { return "audit_events" }

// Open connects to the audit database. driver is "sqlite" or "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", driver, err)
	}
	return db, nil
}

// Store appends events to the chain. It implements events.Emitter so it can
// sit on the runtime's post-commit fanout.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	head *Record
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for append failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New migrates the schema and loads the chain head.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: database required")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	s := &Store{db: db, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	var head Record
	err := db.Order("seq desc").Limit(1).Find(&head).Error
	if err != nil {
		return nil, fmt.Errorf("audit: load head: %w", err)
	}
	if head.Hash != "" {
		s.head = &head
	}
	return s, nil
}

// ChainHash computes the hash binding a record to its predecessor.
func ChainHash(prev string, index uint64, eventType, attributes string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(prev))
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	h.Write(idx[:])
	h.Write([]byte(eventType))
	h.Write([]byte{0})
	h.Write([]byte(attributes))
	return hex.EncodeToString(h.Sum(nil))
}

// Append stores evt as the next chain record.
func (s *Store) Append(evt *types.Event) (*Record, error) {
	if evt == nil {
		return nil, fmt.Errorf("audit: nil event")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("audit: encode attributes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, index := genesisHash, uint64(1)
	if s.head != nil {
		prev, index = s.head.Hash, s.head.Index+1
	}
	rec := &Record{
		ID:         uuid.New(),
		Index:      index,
		Type:       evt.Type,
		Attributes: string(encoded),
		PrevHash:   prev,
		CreatedAt:  s.now().UTC(),
	}
	rec.Hash = ChainHash(prev, index, rec.Type, rec.Attributes)
	if err := s.db.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("audit: append: %w", err)
	}
	s.head = rec
	return rec, nil
}

// Emit implements events.Emitter. Failures are logged because committed
// state cannot be rolled back from the sink.
func (s *Store) Emit(evt events.Event) {
	canonical, ok := events.Canonical(evt)
	if !ok {
		return
	}
	if _, err := s.Append(canonical); err != nil {
		s.logger.Error("audit append failed", slog.String("type", canonical.Type), slog.String("error", err.Error()))
	}
}

// List returns up to limit records with Index greater than after.
func (s *Store) List(after uint64, limit int) ([]Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var out []Record
	err := s.db.Where("seq > ?", after).Order("seq asc").Limit(limit).Find(&out).Error
	return out, err
}

// Head returns the latest record, or nil for an empty chain.
func (s *Store) Head() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head == nil {
		return nil
	}
	head := *s.head
	return &head
}

// VerifyChain recomputes every hash in order and returns the number of
// records checked.
func (s *Store) VerifyChain() (uint64, error) {
	var (
		prev    = genesisHash
		checked uint64
		after   uint64
	)
	for {
		batch, err := s.List(after, 500)
		if err != nil {
			return checked, err
		}
		if len(batch) == 0 {
			return checked, nil
		}
		for _, rec := range batch {
			if rec.Index != checked+1 {
				return checked, fmt.Errorf("%w: index %d follows %d", ErrChainBroken, rec.Index, checked)
			}
			if rec.PrevHash != prev {
				return checked, fmt.Errorf("%w: record %d does not link to its predecessor", ErrChainBroken, rec.Index)
			}
			if ChainHash(rec.PrevHash, rec.Index, rec.Type, rec.Attributes) != rec.Hash {
				return checked, fmt.Errorf("%w: record %d hash mismatch", ErrChainBroken, rec.Index)
			}
			prev = rec.Hash
			checked++
			after = rec.Index
		}
	}
}
