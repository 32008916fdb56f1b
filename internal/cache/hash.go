package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Norgate-AV/mdq/internal/query"
)

// Encode serializes a resolved query set as it is stored in an artifact.
// HTML escaping is disabled so bodies are written as authored.
func Encode(queries []query.Query) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(queries); err != nil {
		return nil, fmt.Errorf("failed to encode queries: %w", err)
	}

	return buf.Bytes(), nil
}

// HashQueries returns the content hash of a resolved query set along with
// the encoded artifact it was taken over
func HashQueries(queries []query.Query) (string, []byte, error) {
	data, err := Encode(queries)
	if err != nil {
		return "", nil, err
	}

	return HashBytes(data), data, nil
}

// HashBytes returns the hex SHA-256 of data
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
