// Package snapshot reads and writes save files: the world state plus every
// NPC's emotions and memories, as zstd-compressed JSON.
//
// Writes are atomic. The file is assembled under a temporary name in the
// target directory and renamed into place, so a crash mid-save never
// corrupts an existing save.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/veilgate/ludens/internal/ai"
	"github.com/veilgate/ludens/internal/game"
)

// FormatVersion is bumped on incompatible save layout changes.
const FormatVersion = 1

// ErrVersionMismatch is returned when loading a save written with a
// different format version.
var ErrVersionMismatch = errors.New("snapshot: format version mismatch")

// SaveGame is the full persisted state of a running world.
type SaveGame struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	World game.Snapshot    `json:"world"`
	NPCs  []ai.NPCSnapshot `json:"npcs,omitempty"`
}

// Capture assembles a SaveGame from a running engine and director. The
// world snapshot is taken on the loop goroutine via [game.Engine.Do], so
// Capture is safe to call from anywhere while the loop runs.
func Capture(ctx context.Context, eng *game.Engine, director *ai.Director) (SaveGame, error) {
	snapCh := make(chan game.Snapshot, 1)
	if !eng.Do(func() { snapCh <- eng.Snapshot() }) {
		return SaveGame{}, errors.New("snapshot: engine work inbox full")
	}

	var world game.Snapshot
	select {
	case world = <-snapCh:
	case <-ctx.Done():
		return SaveGame{}, fmt.Errorf("snapshot: capture: %w", ctx.Err())
	}

	npcs, err := director.ExportNPCs(ctx)
	if err != nil {
		return SaveGame{}, fmt.Errorf("snapshot: capture: %w", err)
	}

	return SaveGame{
		Version: FormatVersion,
		SavedAt: time.Now().UTC(),
		World:   world,
		NPCs:    npcs,
	}, nil
}

// Write persists the save to path atomically.
func Write(path string, save SaveGame) error {
	save.Version = FormatVersion
	if save.SavedAt.IsZero() {
		save.SavedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encodeTo(tmp, save); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	return nil
}

// Read loads a save written by [Write].
func Read(path string) (SaveGame, error) {
	var save SaveGame

	f, err := os.Open(path)
	if err != nil {
		return save, fmt.Errorf("snapshot: read: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return save, fmt.Errorf("snapshot: read: %w", err)
	}
	defer dec.Close()

	if err := json.NewDecoder(dec.IOReadCloser()).Decode(&save); err != nil {
		return save, fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	if save.Version != FormatVersion {
		return save, fmt.Errorf("%w: file has v%d, want v%d", ErrVersionMismatch, save.Version, FormatVersion)
	}
	return save, nil
}

// Restore pushes a loaded save back into the director. The world snapshot
// is informational; scenes and objects are rebuilt by the application from
// its own world definition.
func Restore(ctx context.Context, director *ai.Director, save SaveGame) error {
	if err := director.ImportNPCs(ctx, save.NPCs); err != nil {
		return fmt.Errorf("snapshot: restore: %w", err)
	}
	return nil
}

func encodeTo(f *os.File, save SaveGame) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := json.NewEncoder(enc).Encode(save); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
