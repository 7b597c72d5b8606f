// Package snapshot persists the vector index and metadata ledger as a pair of
// on-disk artifacts and restores them on startup.
//
// The index artifact is the index's own binary encoding. The metadata
// artifact is a 2-space indented JSON array of chunk records so it can be
// read and diffed by hand. Each artifact is written to a temporary file and
// renamed into place, so neither file is ever torn; the pair itself can still
// disagree if the process dies between the two renames, which Load detects
// and resolves according to a Policy.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/54b3r/docqa-go/internal/index"
	"github.com/54b3r/docqa-go/internal/ledger"
	"github.com/54b3r/docqa-go/internal/logging"
)

// Default artifact file names.
const (
	DefaultIndexFile    = "index.bin"
	DefaultMetadataFile = "metadata.json"
)

// Paths names the two snapshot artifacts.
type Paths struct {
	// Index is the vector index artifact. Ignored for indexes that keep their
	// vectors outside the process (Qdrant).
	Index string
	// Metadata is the JSON ledger artifact.
	Metadata string
}

// Enabled reports whether a metadata path is configured.
func (p Paths) Enabled() bool { return p.Metadata != "" }

// DefaultPaths returns the artifact paths inside dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Index:    filepath.Join(dir, DefaultIndexFile),
		Metadata: filepath.Join(dir, DefaultMetadataFile),
	}
}

// Policy decides what Load does when the two artifacts disagree in length.
type Policy string

const (
	// PolicyTruncate keeps the common prefix: the longer artifact is cut to
	// the length of the shorter one. Positions are append-only and the index
	// is written first, so the shorter artifact describes a prefix of the
	// longer one. A reset breaks the append-only history; callers must
	// DiscardMetadata before the first Save that follows one.
	PolicyTruncate Policy = "truncate"
	// PolicyRefuse discards both artifacts and starts empty.
	PolicyRefuse Policy = "refuse"
)

// ParsePolicy converts a config string to a Policy. Empty selects
// PolicyTruncate.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyTruncate:
		return PolicyTruncate, nil
	case PolicyRefuse:
		return PolicyRefuse, nil
	default:
		return "", fmt.Errorf("snapshot: unknown mismatch policy %q (valid: truncate, refuse)", s)
	}
}

// Report describes what Load found and kept.
type Report struct {
	// VectorCount and MetadataCount are the lengths as read from disk.
	VectorCount   int
	MetadataCount int
	// Inconsistent is true when the lengths disagreed.
	Inconsistent bool
	// Kept is the number of aligned entries left after resolution.
	Kept int
}

// truncater is implemented by indexes that can drop a suffix of vectors.
type truncater interface {
	Truncate(n int)
}

// Save writes the index artifact (when the index supports it) and then the
// metadata artifact. Callers must hold a lock that excludes appends.
func Save(ctx context.Context, idx index.Index, led *ledger.Ledger, paths Paths) error {
	if snap, ok := idx.(index.Snapshotter); ok && paths.Index != "" {
		data, err := snap.MarshalBinary()
		if err != nil {
			return fmt.Errorf("snapshot: encode index: %w", err)
		}
		if err := writeAtomic(paths.Index, data); err != nil {
			return fmt.Errorf("snapshot: write index: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(led); err != nil {
		return fmt.Errorf("snapshot: encode metadata: %w", err)
	}
	if err := writeAtomic(paths.Metadata, buf.Bytes()); err != nil {
		return fmt.Errorf("snapshot: write metadata: %w", err)
	}

	logging.FromContext(ctx).Debug("snapshot: saved",
		slog.String("metadata", paths.Metadata),
		slog.Int("records", led.Len()),
	)
	return nil
}

// Load restores idx from the index artifact and returns the ledger read from
// the metadata artifact. A missing artifact yields an empty half; both
// missing yields an empty index and ledger with no error. Length mismatches
// are resolved according to policy and logged at ERROR.
func Load(ctx context.Context, idx index.Index, paths Paths, policy Policy) (*ledger.Ledger, Report, error) {
	log := logging.FromContext(ctx)

	if snap, ok := idx.(index.Snapshotter); ok {
		data, err := readOptional(paths.Index)
		if err != nil {
			return nil, Report{}, fmt.Errorf("snapshot: read index: %w", err)
		}
		if data == nil {
			if err := idx.Reset(ctx); err != nil {
				return nil, Report{}, fmt.Errorf("snapshot: reset index: %w", err)
			}
		} else if err := snap.UnmarshalBinary(data); err != nil {
			return nil, Report{}, fmt.Errorf("snapshot: decode index %s: %w", paths.Index, err)
		}
	}

	led := ledger.New()
	data, err := readOptional(paths.Metadata)
	if err != nil {
		return nil, Report{}, fmt.Errorf("snapshot: read metadata: %w", err)
	}
	if data != nil {
		if err := json.Unmarshal(data, led); err != nil {
			return nil, Report{}, fmt.Errorf("snapshot: decode metadata %s: %w", paths.Metadata, err)
		}
	}

	rep := Report{VectorCount: idx.Len(), MetadataCount: led.Len()}
	rep.Kept = rep.VectorCount
	if rep.VectorCount == rep.MetadataCount {
		return led, rep, nil
	}

	rep.Inconsistent = true
	keep := min(rep.VectorCount, rep.MetadataCount)
	t, canTruncate := idx.(truncater)
	if policy == PolicyTruncate && (rep.VectorCount < rep.MetadataCount || canTruncate) {
		if canTruncate {
			t.Truncate(keep)
		}
		led.Truncate(keep)
		rep.Kept = keep
	} else {
		if err := idx.Reset(ctx); err != nil {
			return nil, Report{}, fmt.Errorf("snapshot: reset index: %w", err)
		}
		led.Reset()
		rep.Kept = 0
	}

	log.Error("snapshot: index and metadata lengths disagree",
		slog.Int("vector_count", rep.VectorCount),
		slog.Int("metadata_count", rep.MetadataCount),
		slog.String("policy", string(policy)),
		slog.Int("kept", rep.Kept),
	)
	return led, rep, nil
}

// DiscardMetadata deletes the metadata artifact ahead of a Save whose
// ledger does not extend the one on disk. If the process dies before the
// new pair is complete, Load then finds no stale records to pair with the
// new vectors. A missing file is not an error.
func DiscardMetadata(paths Paths) error {
	if paths.Metadata == "" {
		return nil
	}
	if err := os.Remove(paths.Metadata); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("snapshot: discard metadata: %w", err)
	}
	return nil
}

// Remove deletes both artifacts. Failures, including missing files, are
// logged at DEBUG and otherwise ignored.
func Remove(ctx context.Context, paths Paths) {
	log := logging.FromContext(ctx)
	for _, p := range []string{paths.Index, paths.Metadata} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Debug("snapshot: remove artifact failed", slog.String("path", p), slog.Any("error", err))
		}
	}
}

// readOptional returns the file contents, or nil when the file is absent.
func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// writeAtomic writes data to path via a temporary sibling and a rename.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
