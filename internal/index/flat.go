package index

import (
	"bytes"
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
)

// flatMagic prefixes every serialised Flat index.
var flatMagic = [4]byte{'D', 'Q', 'I', 'X'}

// flatVersion is bumped whenever the binary layout changes.
const flatVersion uint32 = 1

// flatHeaderSize is magic + version + dim + count.
const flatHeaderSize = 16

// Flat is an exact brute-force index ranking by squared L2 distance.
// Vectors are stored contiguously; search is a full linear scan.
type Flat struct {
	mu   sync.RWMutex
	dim  int
	data []float32
}

var (
	_ Index       = (*Flat)(nil)
	_ Snapshotter = (*Flat)(nil)
)

// NewFlat returns an empty Flat index for vectors of width dim.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Dim returns the vector width.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dim
}

// Add appends vectors. Either every vector is added or none is.
func (f *Flat) Add(_ context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if err := checkDim(fmt.Sprintf("vectors[%d]", i), v, f.dim); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = slices.Grow(f.data, len(vectors)*f.dim)
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Search scans every stored vector and returns the k closest.
func (f *Flat) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if err := checkDim("query", query, f.dim); err != nil {
		return nil, err
	}

	f.mu.RLock()
	n := len(f.data) / f.dim
	all := make([]Neighbor, n)
	for pos := range n {
		all[pos] = Neighbor{
			Position: pos,
			Distance: squaredL2(query, f.data[pos*f.dim:(pos+1)*f.dim]),
		}
	}
	f.mu.RUnlock()

	// Stable sort keeps ascending positions among equal distances.
	slices.SortStableFunc(all, func(a, b Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if k < len(all) {
		all = all[:k]
	}
	return all, nil
}

// Reset discards every stored vector.
func (f *Flat) Reset(_ context.Context) error {
	f.mu.Lock()
	f.data = nil
	f.mu.Unlock()
	return nil
}

// Truncate keeps only the first n vectors. It is used when recovering from a
// snapshot whose metadata artifact is shorter than its index artifact.
func (f *Flat) Truncate(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n*f.dim < len(f.data) {
		f.data = f.data[:n*f.dim]
	}
}

// Vector returns a copy of the vector at pos.
func (f *Flat) Vector(pos int) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if pos < 0 || (pos+1)*f.dim > len(f.data) {
		return nil, false
	}
	return slices.Clone(f.data[pos*f.dim : (pos+1)*f.dim]), true
}

// Close is a no-op for the in-process index.
func (f *Flat) Close() error { return nil }

// MarshalBinary encodes the index as:
// magic "DQIX", version(uint32), dim(uint32), count(uint32), then
// count*dim little-endian float32 values.
func (f *Flat) MarshalBinary() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.data) / f.dim
	out := make([]byte, flatHeaderSize+4*len(f.data))
	copy(out[0:4], flatMagic[:])
	binary.LittleEndian.PutUint32(out[4:8], flatVersion)
	binary.LittleEndian.PutUint32(out[8:12], uint32(f.dim)) //nolint:gosec // dim is positive and small
	binary.LittleEndian.PutUint32(out[12:16], uint32(n))    //nolint:gosec // count bounded by memory
	for i, v := range f.data {
		binary.LittleEndian.PutUint32(out[flatHeaderSize+4*i:], math.Float32bits(v))
	}
	return out, nil
}

// UnmarshalBinary replaces the index contents with data produced by
// MarshalBinary. The encoded dimension must match the index dimension.
func (f *Flat) UnmarshalBinary(data []byte) error {
	if len(data) < flatHeaderSize {
		return errors.New("index: snapshot too short")
	}
	if !bytes.Equal(data[0:4], flatMagic[:]) {
		return errors.New("index: snapshot has wrong magic")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != flatVersion {
		return fmt.Errorf("index: unsupported snapshot version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	n := int(binary.LittleEndian.Uint32(data[12:16]))
	if n > 0 && dim != f.dim {
		return fmt.Errorf("index: snapshot dimension %d does not match index dimension %d", dim, f.dim)
	}
	body := data[flatHeaderSize:]
	if len(body) != 4*n*dim {
		return fmt.Errorf("index: snapshot truncated: want %d bytes of vectors, got %d", 4*n*dim, len(body))
	}

	vals := make([]float32, n*dim)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[4*i:]))
	}

	f.mu.Lock()
	f.data = vals
	f.mu.Unlock()
	return nil
}

// squaredL2 returns sum((a[i]-b[i])^2), accumulated in float64.
func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}
