package worker

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/clausecheck/internal/model"
)

// DocumentExtensions are the file types picked up when scanning a folder
var DocumentExtensions = []string{".txt", ".html", ".htm", ".md"}

// Scanner runs one compliance scan over a file
type Scanner interface {
	ScanFile(ctx context.Context, path string) (*model.Report, error)
}

// ScanJob scans a single file
type ScanJob struct {
	Path    string
	Scanner Scanner
}

// Execute runs the scan
func (j *ScanJob) Execute(ctx context.Context) Result {
	report, err := j.Scanner.ScanFile(ctx, j.Path)
	return &ScanResult{Path: j.Path, Report: report, Error: err}
}

// ScanResult is the outcome of one file scan
type ScanResult struct {
	Path   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the scan result
func (r *ScanResult) GetError() error {
	return r.Error
}

// BatchProcessor scans many files concurrently
type BatchProcessor struct {
	scanner     Scanner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(scanner Scanner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		scanner:     scanner,
		concurrency: concurrency,
	}
}

// ProcessFiles scans paths and returns results in input order
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*ScanResult {
	if len(paths) == 0 {
		return []*ScanResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, p := range paths {
		pool.Submit(&ScanJob{Path: p, Scanner: b.scanner})
	}

	results := pool.Wait()
	out := make([]*ScanResult, len(results))
	for i, r := range results {
		out[i] = r.(*ScanResult)
	}
	return out
}

// ProcessDir scans every document file under dir
func (b *BatchProcessor) ProcessDir(ctx context.Context, dir string) ([]*ScanResult, error) {
	paths, err := CollectFiles(dir, DocumentExtensions)
	if err != nil {
		return nil, err
	}
	return b.ProcessFiles(ctx, paths), nil
}

// CollectFiles walks dir and returns files with one of exts, sorted
func CollectFiles(dir string, exts []string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range exts {
			if ext == e {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadPathsFromFile reads file paths from a list file (one per line, # comments)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
