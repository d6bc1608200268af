package history

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const filePrefix = "rs_"

// FileSink appends gob encoded events to dir/rs_<unix start time>.
type FileSink struct {
	file *os.File
	enc  *gob.Encoder
}

// OpenFile starts a new stats file in dir, creating dir if needed.
func OpenFile(dir string, when time.Time) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stats dir: %w", err)
	}
	name := filepath.Join(dir, filePrefix+strconv.FormatInt(when.Unix(), 10))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats file: %w", err)
	}
	return &FileSink{file: f, enc: gob.NewEncoder(f)}, nil
}

func (s *FileSink) Save(_ context.Context, e Event) error {
	return s.enc.Encode(&e)
}

func (s *FileSink) Close() error {
	s.file.Sync()
	return s.file.Close()
}

// Load reads every stats file in dir, oldest first. A corrupt tail in one
// file ends that file; what was decoded before it is kept.
func Load(dir string) ([]Event, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, fi := range entries {
		if !fi.IsDir() && strings.HasPrefix(fi.Name(), filePrefix) {
			names = append(names, fi.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, _ := strconv.ParseInt(strings.TrimPrefix(names[i], filePrefix), 10, 64)
		b, _ := strconv.ParseInt(strings.TrimPrefix(names[j], filePrefix), 10, 64)
		return a < b
	})

	events := []Event{}
	var errs []error
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		dec := gob.NewDecoder(f)
		for {
			var e Event
			if err := dec.Decode(&e); err != nil {
				if err != io.EOF {
					errs = append(errs, fmt.Errorf("%s: %w", name, err))
				}
				break
			}
			events = append(events, e)
		}
		f.Close()
	}
	return events, errors.Join(errs...)
}
