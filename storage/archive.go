package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// SeasonArchiver keeps a copy of a season's rows before they are deleted.
type SeasonArchiver interface {
	Archive(ctx context.Context, seasonID int, runID string, snapshot interface{}) (*UploadResult, error)
	Discard(ctx context.Context, key string) error
}

type objectArchiver struct {
	uploader FileUploader
}

func NewSeasonArchiver(uploader FileUploader) SeasonArchiver {
	return &objectArchiver{uploader: uploader}
}

func SnapshotKey(seasonID int, runID string) string {
	return fmt.Sprintf("seasons/%d/%s.json", seasonID, runID)
}

func (a *objectArchiver) Archive(ctx context.Context, seasonID int, runID string, snapshot interface{}) (*UploadResult, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode season %d snapshot: %w", seasonID, err)
	}
	return a.uploader.Upload(ctx, SnapshotKey(seasonID, runID), "application/json", bytes.NewReader(body))
}

// Discard removes a snapshot whose deletion did not commit.
func (a *objectArchiver) Discard(ctx context.Context, key string) error {
	return a.uploader.Delete(ctx, key)
}

// MemoryUploader is an in-process FileUploader.
type MemoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{objects: make(map[string][]byte)}
}

func (m *MemoryUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return &UploadResult{Key: key, Location: "memory://" + key}, nil
}

func (m *MemoryUploader) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Object returns a stored object and whether it exists.
func (m *MemoryUploader) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}
