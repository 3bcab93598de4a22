package callcontext

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"scamdetect-server/pkg/errors"
)

// DocumentStore persists one opaque document per call id. Implementations
// must make Put atomic so a crash mid-write never leaves a torn document.
type DocumentStore interface {
	// Get returns the raw document and whether it exists.
	Get(callID string) ([]byte, bool, error)

	// Put replaces the document for a call id.
	Put(callID string, data []byte) error

	// Delete removes the document. Deleting a missing document is not an
	// error.
	Delete(callID string) error
}

// FileDocumentStore keeps one JSON file per call id under a directory.
type FileDocumentStore struct {
	dir    string
	logger *logrus.Entry
}

// NewFileDocumentStore creates the backing directory if needed.
func NewFileDocumentStore(dir string, logger *logrus.Logger) (*FileDocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create document store directory",
			map[string]interface{}{"dir": dir})
	}

	logger.WithField("dir", dir).Info("File document store initialized")

	return &FileDocumentStore{
		dir:    dir,
		logger: logger.WithField("component", "document_store"),
	}, nil
}

func (s *FileDocumentStore) path(callID string) string {
	// Call ids come from the transport layer; strip path separators so a
	// hostile id cannot escape the store directory.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(callID)
	return filepath.Join(s.dir, safe+".json")
}

// Get reads the document for a call id.
func (s *FileDocumentStore) Get(callID string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(callID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "failed to read call document",
			map[string]interface{}{"call_id": callID})
	}
	return data, true, nil
}

// Put writes the document via a temp file and rename so readers never see a
// partial write.
func (s *FileDocumentStore) Put(callID string, data []byte) error {
	target := s.path(callID)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp document",
			map[string]interface{}{"call_id": callID})
	}

	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write call document",
			map[string]interface{}{"call_id": callID})
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close call document",
			map[string]interface{}{"call_id": callID})
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to commit call document",
			map[string]interface{}{"call_id": callID})
	}
	return nil
}

// Delete removes the document; missing documents are ignored.
func (s *FileDocumentStore) Delete(callID string) error {
	if err := os.Remove(s.path(callID)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete call document",
			map[string]interface{}{"call_id": callID})
	}
	return nil
}

// MemoryDocumentStore is an in-memory DocumentStore for tests and
// single-process deployments that do not need durability.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryDocumentStore creates an empty in-memory store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string][]byte)}
}

// Get returns the stored document, if any.
func (s *MemoryDocumentStore) Get(callID string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[callID]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// Put stores a copy of the document.
func (s *MemoryDocumentStore) Put(callID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.docs[callID] = stored
	return nil
}

// Delete removes the document; missing documents are ignored.
func (s *MemoryDocumentStore) Delete(callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, callID)
	return nil
}
