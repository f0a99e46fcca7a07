// Package converter stores uploaded bank statements per browser session and
// produces their CSV exports. Conversion itself is a placeholder that writes
// randomly generated rows.
package converter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

const (
	pdfDir = "pdf"
	csvDir = "csv"

	placeholderRows = 20
)

var (
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrUnsupportedType  = errors.New("only PDF statements are supported")
	ErrFileTooLarge     = errors.New("file exceeds upload limit")
	ErrSessionNotFound  = errors.New("no files for session")
	ErrFileNotFound     = errors.New("file not found")
)

// CSVHeader is the first record of every export.
var CSVHeader = []string{"Date", "Description", "Amount", "Balance"}

// FileInfo describes one converted file.
type FileInfo struct {
	Name     string    `json:"name"`
	Modified time.Time `json:"modified"`
}

// Store keeps uploads under <root>/<session>/pdf and exports under
// <root>/<session>/csv.
type Store struct {
	fs      afero.Fs
	maxSize int64
	log     *logger.Logger

	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

// NewStore returns a store rooted at dir on the local disk, creating dir
// when it is missing.
func NewStore(dir string, maxSize int64, log *logger.Logger) (*Store, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return NewStoreFs(afero.NewBasePathFs(osFs, dir), maxSize, log), nil
}

// NewStoreFs returns a store on an arbitrary filesystem.
func NewStoreFs(fs afero.Fs, maxSize int64, log *logger.Logger) *Store {
	return &Store{
		fs:      fs,
		maxSize: maxSize,
		log:     log,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// Save stores one uploaded statement and writes its CSV export. It returns
// the export's file name.
func (s *Store) Save(sessionID, filename string, r io.Reader) (string, error) {
	if err := checkSessionID(sessionID); err != nil {
		return "", err
	}
	if err := checkFilename(filename); err != nil {
		return "", err
	}

	if s.maxSize > 0 {
		r = io.LimitReader(r, s.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return "", ErrFileTooLarge
	}
	if kind := mimetype.Detect(data); !kind.Is("application/pdf") {
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedType, kind.String())
	}

	pdfPath := path.Join(sessionID, pdfDir, filename)
	if err := s.write(pdfPath, data); err != nil {
		return "", err
	}

	csvName := ExportName(filename)
	export, err := s.placeholderCSV()
	if err != nil {
		return "", err
	}
	if err := s.write(path.Join(sessionID, csvDir, csvName), export); err != nil {
		return "", err
	}

	s.log.Info("[Converter] statement stored", "session", sessionID, "file", filename, "bytes", len(data))
	return csvName, nil
}

// List returns the session's exports, newest first.
func (s *Store) List(sessionID string) ([]FileInfo, error) {
	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, path.Join(sessionID, csvDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, FileInfo{Name: entry.Name(), Modified: entry.ModTime().UTC()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	return files, nil
}

// Open returns a reader for one export. The caller closes it.
func (s *Store) Open(sessionID, filename string) (afero.File, error) {
	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}
	if err := checkFilename(filename); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(path.Join(sessionID, csvDir, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

// Prune removes every session whose files were all last modified before
// maxAge ago and returns how many were removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	entries, err := afero.ReadDir(s.fs, ".")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		newest, err := s.lastModified(entry.Name())
		if err != nil {
			return removed, err
		}
		if newest.After(cutoff) {
			continue
		}
		if err := s.fs.RemoveAll(entry.Name()); err != nil {
			return removed, fmt.Errorf("failed to remove session %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) lastModified(dir string) (time.Time, error) {
	var newest time.Time
	err := afero.Walk(s.fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest, err
}

func (s *Store) write(name string, data []byte) error {
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, name, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (s *Store) placeholderCSV() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}

	balance := decimal.New(s.rand.Int63n(500000), -2)
	day := s.now().UTC().AddDate(0, 0, -placeholderRows)
	for i := 0; i < placeholderRows; i++ {
		amount := decimal.New(s.rand.Int63n(200000)-100000, -2)
		balance = balance.Add(amount)
		record := []string{
			day.AddDate(0, 0, i).Format("2006-01-02"),
			fmt.Sprintf("Transaction %d", i+1),
			amount.StringFixed(2),
			balance.StringFixed(2),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportName maps an uploaded file name to its CSV export name.
func ExportName(filename string) string {
	base := strings.TrimSuffix(filename, path.Ext(filename))
	return base + ".csv"
}

func checkSessionID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return ErrInvalidSessionID
	}
	return nil
}

func checkFilename(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return ErrInvalidFilename
	}
	return nil
}
