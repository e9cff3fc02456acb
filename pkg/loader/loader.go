// Package loader fetches uploaded table files and parses them into rows and
// columns for the extraction pipeline. File content comes from a pluggable
// FileLoader; parsing dispatches on the file extension.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"

	"golang.org/x/sync/singleflight"
)

// TableFile identifies one uploaded table in the file store.
type TableFile struct {
	ID       string
	FilePath string
}

// FileLoader retrieves the raw bytes of an uploaded file.
type FileLoader interface {
	GetFileBytes(ctx context.Context, file TableFile) ([]byte, error)
}

// Table is one parsed table: a header row and the data rows below it.
type Table struct {
	Headers []string
	Rows    [][]string
}

// CacheKey derives the cache key of a file.
func CacheKey(file TableFile) string {
	return file.ID + ":" + file.FilePath
}

// TableLoader parses files fetched through a FileLoader into tables. Parsed
// tables are cached per file and concurrent requests for the same file are
// collapsed into a single fetch.
type TableLoader struct {
	loader FileLoader

	cache   map[string]*Table
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewTableLoader creates a TableLoader over the given file loader.
func NewTableLoader(loader FileLoader) *TableLoader {
	return &TableLoader{
		loader: loader,
		cache:  make(map[string]*Table),
	}
}

// GetTable fetches and parses the file. The parser is selected by file
// extension; unknown extensions are parsed as CSV.
func (l *TableLoader) GetTable(ctx context.Context, file TableFile) (*Table, error) {
	key := CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		content, err := l.loader.GetFileBytes(ctx, file)
		if err != nil {
			return nil, err
		}

		var table *Table
		switch strings.ToLower(filepath.Ext(file.FilePath)) {
		case ".xlsx", ".xlsm":
			table, err = ParseXLSX(content)
		default:
			table, err = ParseCSV(content)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file.FilePath, err)
		}

		l.cacheMu.Lock()
		l.cache[key] = table
		l.cacheMu.Unlock()

		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Table), nil
}

// Columns turns a parsed table into column descriptors carrying up to
// maxSamples sample values per column.
func Columns(table *Table, maxSamples int) []common.ColumnDescriptor {
	if table == nil {
		return nil
	}
	if maxSamples <= 0 {
		maxSamples = 1
	}

	columns := make([]common.ColumnDescriptor, len(table.Headers))
	for i, header := range table.Headers {
		samples := make([]string, 0, maxSamples)
		for _, row := range table.Rows {
			if len(samples) == maxSamples {
				break
			}
			if i < len(row) {
				samples = append(samples, strings.TrimSpace(row[i]))
			}
		}
		columns[i] = common.ColumnDescriptor{
			Index:   i,
			Header:  util.StripPositionalSuffix(header),
			Samples: samples,
		}
	}
	return columns
}
