package media

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"gochat/internal/common"
	"gochat/internal/dbmongo"
)

// Storage is the blob backend behind attachments. *dbmongo.MediaStorage is
// the production implementation.
type Storage interface {
	UploadFile(ctx context.Context, filename, mimeType string, uploaderID uint64, content io.Reader) (*dbmongo.MediaFile, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *dbmongo.MediaFile, error)
	FileExists(ctx context.Context, fileID string) (bool, error)
	CopyFile(ctx context.Context, fileID string) (string, error)
	DeleteFile(ctx context.Context, fileID string) error
}

var _ Storage = (*dbmongo.MediaStorage)(nil)

type memoryBlob struct {
	info dbmongo.MediaFile
	data []byte
}

// MemoryStorage keeps blobs in process memory for the memory database driver
// and for tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string]memoryBlob)}
}

func (m *MemoryStorage) UploadFile(_ context.Context, filename, mimeType string, uploaderID uint64, content io.Reader) (*dbmongo.MediaFile, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	info := dbmongo.MediaFile{
		ID:         uuid.NewString(),
		Filename:   filename,
		Size:       int64(len(data)),
		MimeType:   mimeType,
		FileType:   common.DetectFileType(mimeType),
		UploadedBy: uploaderID,
		UploadedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.blobs[info.ID] = memoryBlob{info: info, data: data}
	m.mu.Unlock()
	return &info, nil
}

func (m *MemoryStorage) DownloadFile(_ context.Context, fileID string) (io.ReadCloser, *dbmongo.MediaFile, error) {
	m.mu.RLock()
	blob, ok := m.blobs[fileID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, dbmongo.ErrFileNotFound
	}
	info := blob.info
	return io.NopCloser(bytes.NewReader(blob.data)), &info, nil
}

func (m *MemoryStorage) FileExists(_ context.Context, fileID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[fileID]
	return ok, nil
}

func (m *MemoryStorage) CopyFile(_ context.Context, fileID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[fileID]
	if !ok {
		return "", dbmongo.ErrFileNotFound
	}
	clone := blob.info
	clone.ID = uuid.NewString()
	clone.CopiedFrom = fileID
	clone.UploadedAt = time.Now().UTC()
	m.blobs[clone.ID] = memoryBlob{info: clone, data: append([]byte(nil), blob.data...)}
	return clone.ID, nil
}

func (m *MemoryStorage) DeleteFile(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[fileID]; !ok {
		return dbmongo.ErrFileNotFound
	}
	delete(m.blobs, fileID)
	return nil
}

// Len reports the number of stored blobs.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
