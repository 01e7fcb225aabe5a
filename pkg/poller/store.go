package poller

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// OffsetStore хранит offset getUpdates между итерациями и перезапусками.
type OffsetStore interface {
	// Load возвращает сохранённый offset; ok=false, если его ещё нет.
	Load(ctx context.Context) (offset int64, ok bool, err error)
	Save(ctx context.Context, offset int64) error
	Close() error
}

// MemoryStore - offset в памяти процесса.
type MemoryStore struct {
	mu     sync.Mutex
	offset int64
	set    bool
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, s.set, nil
}

func (s *MemoryStore) Save(_ context.Context, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset, s.set = offset, true
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// SQLiteStore - offset в SQLite файле, одна строка на бота.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// OpenSQLiteStore открывает (или создаёт) базу и таблицу offsets.
//
// key разделяет offset разных ботов в одном файле.
func OpenSQLiteStore(path, key string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open offset db: %w", err)
	}
	// Один писатель
	db.SetMaxOpenConns(1)

	const schema = `CREATE TABLE IF NOT EXISTS offsets (
		bot TEXT PRIMARY KEY,
		next_offset INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create offsets table: %w", err)
	}

	if key == "" {
		key = "default"
	}
	return &SQLiteStore{db: db, key: key}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (int64, bool, error) {
	var offset int64
	err := s.db.QueryRowContext(ctx, `SELECT next_offset FROM offsets WHERE bot = ?`, s.key).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load offset: %w", err)
	}
	return offset, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, offset int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO offsets (bot, next_offset, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(bot) DO UPDATE SET next_offset = excluded.next_offset, updated_at = CURRENT_TIMESTAMP`,
		s.key, offset)
	if err != nil {
		return fmt.Errorf("save offset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
