package state

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const maxSnapshots = 10

// Snapshotter periodically copies the state document into a backups
// directory so a bad write never costs the whole history.
type Snapshotter struct {
	store *Store
	dir   string
	cron  *cron.Cron
}

// NewSnapshotter creates a snapshotter writing to dir.
func NewSnapshotter(store *Store, dir string) *Snapshotter {
	return &Snapshotter{
		store: store,
		dir:   dir,
		cron:  cron.New(),
	}
}

// Start schedules snapshots on the given cron spec (e.g. "@hourly").
func (sn *Snapshotter) Start(spec string) error {
	if err := os.MkdirAll(sn.dir, 0700); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if _, err := sn.cron.AddFunc(spec, func() {
		if err := sn.Snapshot(); err != nil {
			log.Warn().Err(err).Msg("State snapshot failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", spec, err)
	}
	sn.cron.Start()
	log.Info().Str("dir", sn.dir).Str("schedule", spec).Msg("State snapshotter started")
	return nil
}

// Stop stops the schedule; a snapshot in flight completes.
func (sn *Snapshotter) Stop() {
	ctx := sn.cron.Stop()
	<-ctx.Done()
}

// Snapshot copies the current document into the backups directory and prunes
// old copies.
func (sn *Snapshotter) Snapshot() error {
	// Load through the store so we never copy a half-written file.
	if _, err := sn.store.Load(); err != nil {
		return err
	}

	src, err := os.Open(sn.store.Path())
	if os.IsNotExist(err) {
		// Nothing persisted yet.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("state-%s.json", time.Now().UTC().Format("20060102T150405"))
	dst, err := os.OpenFile(filepath.Join(sn.dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy state: %w", err)
	}
	return sn.prune()
}

func (sn *Snapshotter) prune() error {
	entries, err := os.ReadDir(sn.dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "state-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= maxSnapshots {
		return nil
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-maxSnapshots] {
		if err := os.Remove(filepath.Join(sn.dir, name)); err != nil {
			log.Warn().Err(err).Str("snapshot", name).Msg("Failed to prune snapshot")
		}
	}
	return nil
}
