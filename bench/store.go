package bench

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/pessimistic"
)

// Record is the persisted outcome of one successful run.
type Record struct {
	CertificateID string                   `json:"certificate_id"`
	HeaderID      string                   `json:"header_id"`
	Backend       string                   `json:"backend"`
	Engine        string                   `json:"engine"`
	Mode          backend.Mode             `json:"mode"`
	Exits         int                      `json:"exits"`
	ImportedExits int                      `json:"imported_exits"`
	LatencyMs     int64                    `json:"latency_ms"`
	Cycles        uint64                   `json:"cycles"`
	Certificate   *pessimistic.Certificate `json:"certificate"`
	Outputs       *pessimistic.ProofOutput `json:"outputs"`
	Receipt       *backend.Receipt         `json:"receipt,omitempty"`
}

// Store writes records under a results directory. Existing files are never
// overwritten.
type Store struct {
	Dir string
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir %s: %w", dir, err)
	}

	return &Store{Dir: dir}, nil
}

const maxAttempts = 1000

// Save writes rec as <exits>-exits-<backend>-<certificate id>.json, adding
// a numeric suffix when that name is taken, and returns the path.
func (s *Store) Save(rec *Record) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	base := fmt.Sprintf("%d-exits-%s-%s", rec.Exits, rec.Backend, rec.CertificateID)

	for i := 0; i < maxAttempts; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.json", base, i)
		}
		path := filepath.Join(s.Dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}

		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			os.Remove(path)

			return "", fmt.Errorf("write %s: %w", path, err)
		}

		if err := f.Close(); err != nil {
			os.Remove(path)

			return "", fmt.Errorf("close %s: %w", path, err)
		}

		return path, nil
	}

	return "", fmt.Errorf("no free file name for %s in %s", base, s.Dir)
}
