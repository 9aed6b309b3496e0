package records

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists player records and trade boards. Writes are queued to
// a single writer goroutine and batched into transactions; reads go straight
// to the database. Player state never sheds writes: a full queue blocks the
// caller rather than dropping a save.
type SQLiteStore struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqSavePlayer reqKind = iota + 1
	reqSaveBoard
	reqDeletePlayer
)

type req struct {
	kind reqKind

	key      string
	channel  string
	username string
	data     []byte

	// done, when non-nil, makes the write synchronous: the writer commits
	// everything up to and including this request and replies with the error.
	done chan error
}

func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for this append-heavy workload.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS players (
			key TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			username TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_players_channel ON players(channel);`,
		`CREATE TABLE IF NOT EXISTS boards (
			channel TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// LoadPlayer reads a record snapshot. The second return is false when no
// record exists for the key.
func (s *SQLiteStore) LoadPlayer(key string) ([]byte, bool, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM players WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(data), true, nil
}

// SavePlayer queues an asynchronous write.
func (s *SQLiteStore) SavePlayer(key, channel, username string, data []byte) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqSavePlayer, key: key, channel: channel, username: username, data: data}
}

// FlushPlayer writes synchronously, waiting for the writer to commit.
func (s *SQLiteStore) FlushPlayer(key, channel, username string, data []byte) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan error, 1)
	s.ch <- req{kind: reqSavePlayer, key: key, channel: channel, username: username, data: data, done: done}
	return <-done
}

func (s *SQLiteStore) DeletePlayer(key string) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan error, 1)
	s.ch <- req{kind: reqDeletePlayer, key: key, done: done}
	return <-done
}

func (s *SQLiteStore) LoadBoard(channel string) ([]byte, bool, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM boards WHERE channel = ?`, channel).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(data), true, nil
}

func (s *SQLiteStore) SaveBoard(channel string, data []byte) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqSaveBoard, channel: channel, data: data}
}

func (s *SQLiteStore) loop() {
	upsertPlayer, _ := s.db.Prepare(`INSERT OR REPLACE INTO players(key,channel,username,data,updated_at) VALUES(?,?,?,?,?)`)
	deletePlayer, _ := s.db.Prepare(`DELETE FROM players WHERE key = ?`)
	upsertBoard, _ := s.db.Prepare(`INSERT OR REPLACE INTO boards(channel,data,updated_at) VALUES(?,?,?)`)
	defer func() {
		if upsertPlayer != nil {
			_ = upsertPlayer.Close()
		}
		if deletePlayer != nil {
			_ = deletePlayer.Close()
		}
		if upsertBoard != nil {
			_ = upsertBoard.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 64
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Begin()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() error {
		if tx == nil {
			return nil
		}
		err := tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
		return err
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			if r.done != nil {
				r.done <- fmt.Errorf("records: begin transaction failed")
			}
			continue
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		var execErr error
		switch r.kind {
		case reqSavePlayer:
			if upsertPlayer != nil {
				_, execErr = tx.Stmt(upsertPlayer).Exec(r.key, r.channel, r.username, string(r.data), now)
			}
		case reqDeletePlayer:
			if deletePlayer != nil {
				_, execErr = tx.Stmt(deletePlayer).Exec(r.key)
			}
		case reqSaveBoard:
			if upsertBoard != nil {
				_, execErr = tx.Stmt(upsertBoard).Exec(r.channel, string(r.data), now)
			}
		}

		if execErr != nil {
			rollback()
			if r.done != nil {
				r.done <- execErr
			}
			continue
		}
		opCount++

		if r.done != nil {
			r.done <- commit()
			continue
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			_ = commit()
		}
	}

	_ = commit()
}
