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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// StorageLocation records where the bytes behind a DataRef actually live.
type StorageLocation int

const (
	StorageLocationMemory StorageLocation = iota
	StorageLocationDisk
)

func (l StorageLocation) String() string {
	if l == StorageLocationDisk {
		return "disk"
	}
	return "memory"
}

// DataRef is a lightweight pointer to a large tool result held in the
// shared memory store or its disk overflow, returned instead of inlining
// the bytes into conversation history. It is the local replacement for
// the provider-level protobuf reference this package used to carry.
type DataRef struct {
	ID          string
	SizeBytes   int64
	Location    StorageLocation
	Checksum    string
	Compressed  bool
	ContentType string
	Metadata    map[string]string
	StoredAt    int64 // unix millis
}

// GenerateID returns a random hex identifier suitable for keying stored
// blobs and SQL result sets.
func GenerateID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// timestamp-derived id rather than panicking.
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// RefToString renders a DataRef as a short human-readable token for
// inclusion in tool-result summaries.
func RefToString(ref *DataRef) string {
	if ref == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s, %d bytes)", ref.ID, ref.Location, ref.SizeBytes)
}
