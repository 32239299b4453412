package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	domain "github.com/latentlab/proficiency/internal/domain/corpus"
)

// Expected header columns of the pairwise dataset.
const (
	colFileA      = "Arquivo_A"
	colQualityA   = "Quali_A"
	colFileB      = "Arquivo_B"
	colQualityB   = "Quali_B"
	colSameSource = "mesma_fonte"
	colSameFile   = "mesmo_arquivo"
	colScore      = "score"
)

// Loader reads the pairwise-comparison dataset from a delimited file.
// There is no caching: every Load re-reads the file. A missing or
// unreadable dataset yields zero records, not an error; the selector
// decides what that means.
type Loader struct {
	path string
	log  *zap.Logger
}

func NewLoader(path string, log *zap.Logger) *Loader {
	return &Loader{path: path, log: log}
}

func (l *Loader) Load(ctx context.Context) ([]domain.PairwiseComparison, error) {
	f, err := os.Open(l.path)
	if err != nil {
		l.log.Warn("corpus not readable", zap.String("path", l.path), zap.Error(err))
		return nil, nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		l.log.Warn("corpus empty", zap.String("path", l.path), zap.Error(err))
		return nil, nil
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{colFileA, colQualityA, colFileB, colQualityB, colSameSource, colSameFile, colScore} {
		if _, ok := cols[name]; !ok {
			l.log.Warn("corpus header missing column",
				zap.String("path", l.path),
				zap.String("column", name))
			return nil, nil
		}
	}

	var out []domain.PairwiseComparison
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			l.log.Warn("corpus row unparsable", zap.Int("line", line), zap.Error(err))
			continue
		}
		rec, err := parseRow(row, cols)
		if err != nil {
			l.log.Warn("corpus row malformed", zap.Int("line", line), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(row []string, cols map[string]int) (domain.PairwiseComparison, error) {
	var rec domain.PairwiseComparison

	get := func(name string) (string, error) {
		i := cols[name]
		if i >= len(row) {
			return "", errors.New("short row")
		}
		return strings.TrimSpace(row[i]), nil
	}

	var err error
	if rec.FileA, err = get(colFileA); err != nil || rec.FileA == "" {
		return rec, errors.New("missing " + colFileA)
	}
	if rec.FileB, err = get(colFileB); err != nil || rec.FileB == "" {
		return rec, errors.New("missing " + colFileB)
	}

	for _, fld := range []struct {
		name string
		dst  *float64
	}{
		{colQualityA, &rec.QualityA},
		{colQualityB, &rec.QualityB},
		{colScore, &rec.Score},
	} {
		raw, err := get(fld.name)
		if err != nil {
			return rec, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return rec, errors.New("bad " + fld.name)
		}
		*fld.dst = v
	}

	for _, fld := range []struct {
		name string
		dst  *bool
	}{
		{colSameSource, &rec.SameSource},
		{colSameFile, &rec.SameFile},
	} {
		raw, err := get(fld.name)
		if err != nil {
			return rec, err
		}
		switch raw {
		case "0":
			*fld.dst = false
		case "1":
			*fld.dst = true
		default:
			return rec, errors.New("bad " + fld.name)
		}
	}

	return rec, nil
}
