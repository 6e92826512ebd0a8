// Package catalog records batch enhancement runs in a SQLite ledger so that
// repeated batches can skip inputs already processed with the same parameters.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MeKo-Tech/msrcr/internal/retinex"
	"github.com/MeKo-Tech/msrcr/internal/touchup"
)

// Settings is everything that determines the pixels of an output.
type Settings struct {
	Params retinex.Params `json:"params"`
	// FinalTouch is nil when no final touch is applied.
	FinalTouch *touchup.FinalTouch `json:"final_touch,omitempty"`
}

// Run describes one batch invocation.
type Run struct {
	ID         string
	Preset     string
	ParamsHash string
	Params     string // JSON encoding of the settings
	StartedAt  time.Time
}

// Entry is the result of enhancing a single input.
type Entry struct {
	RunID      string
	Input      string
	Output     string
	ParamsHash string
	Width      int
	Height     int
	Bytes      int64
	Elapsed    time.Duration
	Err        string // empty on success
}

// ParamsHash returns a stable hex SHA-256 of the JSON encoding of settings.
// Field order is fixed by the structs, so equal settings hash equally.
func ParamsHash(settings Settings) (string, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
