// Package journal persists request/response exchanges as one JSON document
// per entry for offline inspection.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	model "github.com/zhouzirui/tuft-client/internal/model/journal"
)

const (
	fileExt        = ".json"
	timeLayout     = "20060102_150405"
	maxPrefixRunes = 30
	fallbackPrefix = "entry"
)

// ErrNotFound is returned by Open when no entry matches the name.
var ErrNotFound = errors.New("journal entry not found")

// IOError reports a failure to create the journal directory or write an entry.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("journal %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Store is an append-only, file-backed journal.
type Store struct {
	dir string
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// Record writes one exchange and returns the file name it was stored under.
// Names that already exist get a numeric suffix rather than being replaced.
func (s *Store) Record(ex model.Exchange) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &IOError{Op: "mkdir", Path: s.dir, Err: err}
	}

	ts := s.now()
	entry := model.Entry{
		Timestamp:      ts,
		UserInput:      ex.UserInput,
		SessionID:      ex.SessionID,
		RequestID:      ex.RequestID,
		Request:        ex.Request,
		Response:       ex.Response,
		ElapsedSeconds: ex.Elapsed.Seconds(),
	}
	if ex.Err != nil {
		entry.Response = nil
		entry.Error = ex.Err.Error()
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", &IOError{Op: "encode", Path: s.dir, Err: err}
	}

	base := FileBase(ex.UserInput, ts)
	for n := 1; ; n++ {
		name := base + fileExt
		if n > 1 {
			name = base + "_" + strconv.Itoa(n) + fileExt
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", &IOError{Op: "create", Path: path, Err: err}
		}

		_, writeErr := f.Write(append(data, '\n'))
		closeErr := f.Close()
		if writeErr != nil {
			return "", &IOError{Op: "write", Path: path, Err: writeErr}
		}
		if closeErr != nil {
			return "", &IOError{Op: "close", Path: path, Err: closeErr}
		}
		return name, nil
	}
}

// List returns entry file names, most recently modified first. A journal
// that was never written to is empty.
func (s *Store) List() ([]string, error) {
	items, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &IOError{Op: "list", Path: s.dir, Err: err}
	}

	type named struct {
		name    string
		modTime time.Time
	}
	entries := make([]named, 0, len(items))
	for _, item := range items {
		if item.IsDir() || filepath.Ext(item.Name()) != fileExt {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		entries = append(entries, named{name: item.Name(), modTime: info.ModTime()})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].modTime.After(entries[j].modTime)
		}
		return entries[i].name > entries[j].name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names, nil
}

// Open reads a single entry. The .json extension may be omitted.
func (s *Store) Open(name string) (model.Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return model.Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if filepath.Ext(name) != fileExt {
		name += fileExt
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return model.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return model.Entry{}, &IOError{Op: "open", Path: name, Err: err}
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var entry model.Entry
	if err := dec.Decode(&entry); err != nil {
		return model.Entry{}, fmt.Errorf("decode journal entry %s: %w", name, err)
	}
	return entry, nil
}

// FileBase derives the extension-less file name for userInput at ts.
func FileBase(userInput string, ts time.Time) string {
	return Sanitize(userInput) + "_" + ts.Format(timeLayout)
}

// Sanitize keeps letters, digits, underscores and hyphens from the first
// runes of text and joins whitespace-separated words with a single underscore.
func Sanitize(text string) string {
	runes := []rune(text)
	if len(runes) > maxPrefixRunes {
		runes = runes[:maxPrefixRunes]
	}

	var b strings.Builder
	pendingSpace := false
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return fallbackPrefix
	}
	return out
}
