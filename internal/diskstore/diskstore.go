package diskstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"

	"go.uber.org/zap"
)

// Store persists crash and feedback records as one JSON file per record so
// they survive a crash of the host app itself. Writes are atomic
// (temp file + rename); a crash mid-write never leaves a half-written
// record behind. After every save the directory is pruned to the retained
// window, newest records kept.
type Store struct {
	dir    string
	kind   models.Kind
	retain int
	logger *zap.Logger
}

// NewStore creates a new disk store rooted at dir
func NewStore(dir string, kind models.Kind, retain int, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	return &Store{
		dir:    dir,
		kind:   kind,
		retain: retain,
		logger: logger,
	}, nil
}

// fileName encodes creation time first so lexical order is age order
func (s *Store) fileName(record models.Record) string {
	return fmt.Sprintf("%020d-%s.json", record.CreatedAt.UnixNano(), record.ID)
}

// Save writes a record to the spool. Storage failures are returned for
// logging but the caller treats them as non-fatal.
func (s *Store) Save(record models.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	final := filepath.Join(s.dir, s.fileName(record))

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize record file: %w", err)
	}

	s.logger.Debug("Record spooled",
		zap.String("kind", string(s.kind)),
		zap.String("record_id", record.ID),
	)

	s.prune()
	return nil
}

// LoadAll returns every spooled record, oldest first. The listing is a
// snapshot; files appearing or vanishing during the read are tolerated.
func (s *Store) LoadAll() ([]models.Record, error) {
	names, err := s.listSorted()
	if err != nil {
		return nil, err
	}

	var records []models.Record
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			s.logger.Error("Failed to read spooled record", zap.Error(err), zap.String("file", name))
			continue
		}

		var record models.Record
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.Error("Failed to unmarshal spooled record", zap.Error(err), zap.String("file", name))
			// Remove corrupted file
			os.Remove(path)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Remove deletes the spooled file for a record id, if present
func (s *Store) Remove(recordID string) error {
	names, err := s.listSorted()
	if err != nil {
		return err
	}
	suffix := "-" + recordID + ".json"
	for _, name := range names {
		if strings.HasSuffix(name, suffix) {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove record file: %w", err)
			}
			return nil
		}
	}
	return nil
}

// Count returns the number of spooled records
func (s *Store) Count() int {
	names, err := s.listSorted()
	if err != nil {
		return 0
	}
	return len(names)
}

// listSorted returns record file names, oldest first
func (s *Store) listSorted() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list spool directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".tmp-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// prune drops the oldest files beyond the retained window
func (s *Store) prune() {
	names, err := s.listSorted()
	if err != nil {
		s.logger.Error("Failed to prune spool", zap.Error(err))
		return
	}

	over := len(names) - s.retain
	if over <= 0 {
		return
	}

	for _, name := range names[:over] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			s.logger.Error("Failed to remove pruned record", zap.Error(err), zap.String("file", name))
		}
	}

	s.logger.Debug("Pruned spooled records",
		zap.String("kind", string(s.kind)),
		zap.Int("count", over),
		zap.Int("retained", s.retain),
	)
}
