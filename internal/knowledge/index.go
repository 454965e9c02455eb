package knowledge

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/futig/manual-assistant/internal/entity"
)

// Neighbor is one index hit: the vector's position and its squared L2
// distance to the query.
type Neighbor struct {
	Position int
	Distance float32
}

// VectorIndex stores vectors positionally: the i-th added vector has
// position i until the next Reset.
type VectorIndex interface {
	Dimension() int
	Len() int
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns up to k neighbors ordered by ascending distance.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Reset(ctx context.Context) error
	Save(w io.Writer) error
	Load(ctx context.Context, r io.Reader) error
}

var flatMagic = [4]byte{'M', 'A', 'I', 'X'}

const flatVersion uint32 = 1

// FlatIndex is an exact in-memory L2 index.
type FlatIndex struct {
	dim  int
	data []float32
}

var _ VectorIndex = &FlatIndex{}

func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

func (f *FlatIndex) Dimension() int {
	return f.dim
}

func (f *FlatIndex) Len() int {
	return len(f.data) / f.dim
}

// Add appends vectors. Nothing is added if any vector has the wrong
// dimension.
func (f *FlatIndex) Add(_ context.Context, vectors [][]float32) error {
	if err := checkDimensions(f.dim, f.Len(), vectors); err != nil {
		return err
	}
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dim {
		return nil, &entity.DimensionMismatchError{Expected: f.dim, Got: len(query), Position: -1}
	}
	n := f.Len()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	all := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		row := f.data[i*f.dim : (i+1)*f.dim]
		var d float32
		for j, q := range query {
			diff := row[j] - q
			d += diff * diff
		}
		all[i] = Neighbor{Position: i, Distance: d}
	}

	sort.SliceStable(all, func(a, b int) bool {
		return all[a].Distance < all[b].Distance
	})
	return all[:k], nil
}

func (f *FlatIndex) Reset(context.Context) error {
	f.data = nil
	return nil
}

// Save writes a little-endian header (magic, version, dimension, count)
// followed by the raw vectors.
func (f *FlatIndex) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	header := struct {
		Magic   [4]byte
		Version uint32
		Dim     uint32
		Count   uint64
	}{flatMagic, flatVersion, uint32(f.dim), uint64(f.Len())}

	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	if len(f.data) > 0 {
		if err := binary.Write(bw, binary.LittleEndian, f.data); err != nil {
			return fmt.Errorf("write index vectors: %w", err)
		}
	}
	return bw.Flush()
}

func (f *FlatIndex) Load(_ context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	var header struct {
		Magic   [4]byte
		Version uint32
		Dim     uint32
		Count   uint64
	}
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("read index header: %w", err)
	}
	if header.Magic != flatMagic || header.Version != flatVersion {
		return errors.New("not a flat index file")
	}
	if int(header.Dim) != f.dim {
		return &entity.DimensionMismatchError{Expected: f.dim, Got: int(header.Dim), Position: -1}
	}
	if header.Count > math.MaxInt32 {
		return fmt.Errorf("index file claims %d vectors", header.Count)
	}

	data := make([]float32, int(header.Count)*f.dim)
	if len(data) > 0 {
		if err := binary.Read(br, binary.LittleEndian, data); err != nil {
			return fmt.Errorf("read index vectors: %w", err)
		}
	}
	f.data = data
	return nil
}

func checkDimensions(dim, offset int, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != dim {
			return &entity.DimensionMismatchError{Expected: dim, Got: len(v), Position: offset + i}
		}
	}
	return nil
}
