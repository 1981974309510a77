package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "schedd/pkg/logx"
)

// fileStore is a dependency-free persistence backend: a single
// append-only JSON Lines file, compacted in place when it grows past the
// retention cap.
type fileStore struct {
	log  logx.Logger
	path string
	keep int

	mu     sync.Mutex
	f      *os.File
	writes int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("history.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, keep: cfg.Keep, f: f}, nil
}

func (s *fileStore) AppendRun(ctx context.Context, rec RunRecord) error {
	if s == nil {
		return ErrDisabled
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrDisabled
	}
	if _, err := s.f.Write(b); err != nil {
		return err
	}
	s.writes++
	// Compaction is amortized; checking the cap on every write would
	// reread the file constantly.
	if s.writes%500 == 0 {
		s.compactLocked()
	}
	return nil
}

func (s *fileStore) RecentRuns(ctx context.Context, jobID string, limit int) ([]RunRecord, error) {
	if s == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	recs, err := s.readAllLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// Newest last on disk; return newest first.
	out := make([]RunRecord, 0, limit)
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		if jobID != "" && recs[i].JobID != jobID {
			continue
		}
		out = append(out, recs[i])
	}
	return out, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) readAllLocked() ([]RunRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var recs []RunRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// A torn line from a crash mid-write; skip it.
			s.log.Debug("skipping malformed history line", logx.String("path", s.path))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, sc.Err()
}

// compactLocked rewrites the file keeping only the newest records.
// Best-effort: on any error the original file is left as-is.
func (s *fileStore) compactLocked() {
	recs, err := s.readAllLocked()
	if err != nil || len(recs) <= s.keep {
		return
	}
	recs = recs[len(recs)-s.keep:]

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	w := bufio.NewWriter(f)
	ok := true
	for _, rec := range recs {
		b, err := json.Marshal(rec)
		if err != nil {
			ok = false
			break
		}
		b = append(b, '\n')
		if _, err := w.Write(b); err != nil {
			ok = false
			break
		}
	}
	if ok {
		ok = w.Flush() == nil && f.Close() == nil
	} else {
		_ = f.Close()
	}
	if !ok {
		_ = os.Remove(tmp)
		return
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return
	}
	// Reopen the append handle on the new inode.
	if s.f != nil {
		_ = s.f.Close()
	}
	s.f, _ = os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	s.log.Debug("history compacted", logx.String("path", s.path), logx.Int("kept", len(recs)))
}
