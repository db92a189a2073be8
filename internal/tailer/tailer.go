// Package tailer follows an append-only log file, delivering each complete
// line to a callback as it arrives.
//
// DESIGN: A single reader with a cooperative poll-and-sleep loop. No inotify:
// when a read hits EOF the tailer sleeps for the poll interval, re-checks the
// file for rotation or truncation, and tries again. The tailer owns the read
// cursor for the lifetime of the process: a Follow that fails and is
// re-entered resumes where the previous attempt stopped instead of replaying
// already-processed lines. There is no durable checkpoint across restarts of
// the process itself.
package tailer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultPollInterval = time.Second

// LineFunc receives one complete line, terminator stripped.
type LineFunc func(line string)

// Config configures a Tailer.
type Config struct {
	Path string
	// PollInterval is the sleep between EOF re-checks. Defaults to 1s.
	PollInterval time.Duration
	// FromStart replays the file from offset 0 on the initial open.
	// Otherwise reading starts at the current end of file. Reopens after
	// rotation always start at offset 0.
	FromStart bool
}

// Tailer follows a single log file.
type Tailer struct {
	path         string
	pollInterval time.Duration
	fromStart    bool

	// Cursor state, held across Follow calls so a re-entered Follow
	// resumes instead of replaying. Only complete, delivered lines are
	// counted; a partial trailing line is re-read on resume.
	started bool
	offset  int64
	ident   os.FileInfo
}

// New creates a Tailer for the given file.
func New(cfg Config) *Tailer {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Tailer{
		path:         cfg.Path,
		pollInterval: interval,
		fromStart:    cfg.FromStart,
	}
}

// Follow blocks, delivering complete lines to fn until the context is
// cancelled (returns ctx.Err()) or an unrecoverable read error occurs.
// A file that does not exist yet is waited for, not an error. A half-written
// trailing line is buffered until its terminator shows up. Calling Follow
// again after a failure continues from the held cursor; already-delivered
// lines are not replayed.
func (t *Tailer) Follow(ctx context.Context, fn LineFunc) error {
	f, err := t.waitForFile(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := t.position(f); err != nil {
		return err
	}
	log.Info().Str("path", t.path).Int64("offset", t.offset).Msg("tailing log file")

	reader := bufio.NewReader(f)

	for {
		chunk, err := reader.ReadString('\n')
		if err == nil {
			t.offset += int64(len(chunk))
			fn(strings.TrimRight(chunk, "\r\n"))
			continue
		}
		if err != io.EOF {
			return fmt.Errorf("tailer: read: %w", err)
		}

		// EOF, possibly with a terminator-less fragment. The cursor
		// stays on the line start; the fragment is re-read whole once
		// the rest of it is written.
		pending := int64(len(chunk))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.pollInterval):
		}

		rotated, statErr := t.rotated(f, t.offset+pending)
		if statErr != nil && !os.IsNotExist(statErr) {
			return fmt.Errorf("tailer: stat: %w", statErr)
		}
		if rotated || os.IsNotExist(statErr) {
			log.Info().Str("path", t.path).Msg("log rotation detected, reopening from start")
			_ = f.Close()
			f, err = t.waitForFile(ctx)
			if err != nil {
				return err
			}
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("tailer: stat: %w", err)
			}
			reader = bufio.NewReader(f)
			t.offset = 0
			t.ident = info
			continue
		}

		if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
			return fmt.Errorf("tailer: seek: %w", err)
		}
		reader.Reset(f)
	}
}

// position seeks f to the tailer's cursor. The first call honors FromStart;
// later calls resume at the held offset as long as the file on disk is still
// the one the offset was taken against and has not shrunk below it.
func (t *Tailer) position(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("tailer: stat: %w", err)
	}

	switch {
	case !t.started:
		t.started = true
		if !t.fromStart {
			end, err := f.Seek(0, io.SeekEnd)
			if err != nil {
				return fmt.Errorf("tailer: seek end: %w", err)
			}
			t.offset = end
		}
	case t.ident != nil && os.SameFile(t.ident, info) && info.Size() >= t.offset:
		if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
			return fmt.Errorf("tailer: seek: %w", err)
		}
	default:
		// Rotated or truncated while no Follow was running.
		t.offset = 0
	}
	t.ident = info
	return nil
}

// rotated reports whether the file at the tailer's path is no longer the one
// being read (identity change) or has shrunk below the read offset
// (truncation in place).
func (t *Tailer) rotated(f *os.File, offset int64) (bool, error) {
	onDisk, err := os.Stat(t.path)
	if err != nil {
		return false, err
	}
	open, err := f.Stat()
	if err != nil {
		return false, err
	}
	if !os.SameFile(onDisk, open) {
		return true, nil
	}
	return onDisk.Size() < offset, nil
}

// waitForFile polls until the file can be opened or the context is
// cancelled.
func (t *Tailer) waitForFile(ctx context.Context) (*os.File, error) {
	logged := false
	for {
		f, err := os.Open(t.path)
		if err == nil {
			return f, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("tailer: open: %w", err)
		}
		if !logged {
			log.Info().Str("path", t.path).Msg("log file not present yet, waiting")
			logged = true
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}
}
