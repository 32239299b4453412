package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	domain "github.com/latentlab/proficiency/internal/domain/samples"
)

// Pool locates base images by name across the configured directory
// roots, searched in order. The corpus stores bare filenames only.
type Pool struct {
	roots []string
}

func NewPool(roots ...string) *Pool {
	return &Pool{roots: roots}
}

// Locate returns the full path of the first root holding the file.
func (p *Pool) Locate(name string) (string, error) {
	for _, root := range p.roots {
		path := filepath.Join(root, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrAssetMissing, name)
}

// Hash returns the hex sha256 of the file content.
func (p *Pool) Hash(name string) (string, error) {
	path, err := p.Locate(name)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrAssetMissing, name)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
