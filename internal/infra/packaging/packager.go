package packaging

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/latentlab/proficiency/internal/application"
	domain "github.com/latentlab/proficiency/internal/domain/samples"
)

const (
	questionedBase = "QUESTIONADA"
	standardBase   = "PADRAO"
)

// Packager lays a sample out on disk: one directory per group holding
// the degraded questioned image and the renamed standards, then a single
// zip of the whole participant tree.
type Packager struct {
	Root         string // samples root directory
	Assets       domain.AssetLocator
	Degrader     domain.Degrader
	Rand         application.Rand
	Log          *zap.Logger
	DisplayWidth int
}

// PackageGroup writes <root>/<carryCode>/<groupID>/ with QUESTIONADA.<ext>
// and PADRAO_NN.<ext> files. Physical naming gets its own shuffle at copy
// time; it is not reconciled with the selection order, so MatchedIndex on
// the candidate refers to the selection order only.
func (p *Packager) PackageGroup(carryCode, groupID string, g *domain.GroupCandidate) error {
	dir := filepath.Join(p.Root, carryCode, groupID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating group directory: %w", err)
	}

	src, err := p.Assets.Locate(g.Questioned)
	if err != nil {
		return err
	}
	qOut := filepath.Join(dir, questionedBase+strings.ToLower(filepath.Ext(g.Questioned)))
	if _, err := p.Degrader.Degrade(src, qOut); err != nil {
		return err
	}

	order := make([]int, len(g.Standards))
	for i := range order {
		order[i] = i
	}
	p.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for n, idx := range order {
		name := g.Standards[idx]
		srcPath, err := p.Assets.Locate(name)
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, fmt.Sprintf("%s_%02d%s", standardBase, n, strings.ToLower(filepath.Ext(name))))
		if err := p.copyResized(srcPath, dst); err != nil {
			return err
		}
	}

	p.Log.Info("group packaged",
		zap.String("carry_code", carryCode),
		zap.String("group", groupID),
		zap.Int("standards", len(g.Standards)))
	return nil
}

// Archive zips <root>/<carryCode> into <root>/<carryCode>.zip and
// returns the archive path. The tree is left in place.
func (p *Packager) Archive(carryCode string) (string, error) {
	tree := filepath.Join(p.Root, carryCode)
	if _, err := os.Stat(tree); err != nil {
		return "", fmt.Errorf("%w: sample tree %s", domain.ErrAssetMissing, tree)
	}

	zipPath := tree + ".zip"
	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	err = filepath.WalkDir(tree, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(tree, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(filepath.Join(carryCode, rel)))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("archiving %s: %w", tree, err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finishing archive: %w", err)
	}

	p.Log.Info("sample archived", zap.String("carry_code", carryCode), zap.String("zip", zipPath))
	return zipPath, nil
}

func (p *Packager) copyResized(srcPath, dstPath string) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrAssetMissing, srcPath, err)
	}
	if p.DisplayWidth > 0 && img.Bounds().Dx() != p.DisplayWidth {
		img = imaging.Resize(img, p.DisplayWidth, 0, imaging.Lanczos)
	}
	if err := imaging.Save(img, dstPath); err != nil {
		return fmt.Errorf("saving %s: %w", dstPath, err)
	}
	return nil
}
