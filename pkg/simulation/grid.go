// Package simulation models an AMR plasma grid and samples it along rays
package simulation

import (
	"fmt"
	"sort"

	"github.com/df07/go-kerr-raytracer/pkg/metric"
	"gonum.org/v1/gonum/floats"
)

// Field identifies one of the primitive arrays stored per cell
type Field int

const (
	Rho Field = iota
	Pgas
	Kappa
	Uu1
	Uu2
	Uu3
	Bb1
	Bb2
	Bb3
	numFields
)

var fieldNames = [numFields]string{"rho", "pgas", "kappa", "uu1", "uu2", "uu3", "bb1", "bb2", "bb3"}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// Block is one rectangular AMR block. Field arrays are indexed
// (k*n2 + j)*n1 + i with i varying fastest along x1
type Block struct {
	Level    int
	Location [3]int

	X1F, X2F, X3F []float64 // Face coordinates, one longer than the cell count
	X1V, X2V, X3V []float64 // Cell-centre coordinates

	Fields [numFields][]float32
}

// Size returns the cell counts along each direction
func (b *Block) Size() (n1, n2, n3 int) {
	return len(b.X1V), len(b.X2V), len(b.X3V)
}

// Index returns the flat array index of cell (i, j, k)
func (b *Block) Index(i, j, k int) int {
	n1, n2, _ := b.Size()
	return (k*n2+j)*n1 + i
}

// Contains reports whether a grid-coordinate point lies in the block
// Lower faces are inclusive and upper faces exclusive
func (b *Block) Contains(x1, x2, x3 float64) bool {
	return x1 >= b.X1F[0] && x1 < b.X1F[len(b.X1F)-1] &&
		x2 >= b.X2F[0] && x2 < b.X2F[len(b.X2F)-1] &&
		x3 >= b.X3F[0] && x3 < b.X3F[len(b.X3F)-1]
}

// Cell returns the indices of the cell containing a point already known to be
// inside the block
func (b *Block) Cell(x1, x2, x3 float64) (i, j, k int) {
	return faceIndex(b.X1F, x1), faceIndex(b.X2F, x2), faceIndex(b.X3F, x3)
}

// faceIndex returns i with faces[i] <= x < faces[i+1], or -1 outside the
// faces. Validate has already checked that faces strictly increase
func faceIndex(faces []float64, x float64) int {
	n := len(faces)
	if !(x >= faces[0] && x < faces[n-1]) {
		return -1
	}
	return sort.Search(n, func(i int) bool { return faces[i] > x }) - 1
}

// UniformBlock builds an n³ block with equal cell widths over [lo, hi),
// evaluating fn at every cell centre
func UniformBlock(lo, hi [3]float64, n int, fn func(f Field, x1, x2, x3 float64) float64) Block {
	var b Block
	b.X1F, b.X1V = uniformAxis(lo[0], hi[0], n)
	b.X2F, b.X2V = uniformAxis(lo[1], hi[1], n)
	b.X3F, b.X3V = uniformAxis(lo[2], hi[2], n)
	for f := Field(0); f < numFields; f++ {
		b.Fields[f] = make([]float32, n*n*n)
		for k := 0; k < n; k++ {
			for j := 0; j < n; j++ {
				for i := 0; i < n; i++ {
					b.Fields[f][b.Index(i, j, k)] = float32(fn(f, b.X1V[i], b.X2V[j], b.X3V[k]))
				}
			}
		}
	}
	return b
}

func uniformAxis(lo, hi float64, n int) (faces, centres []float64) {
	faces = make([]float64, n+1)
	floats.Span(faces, lo, hi)
	centres = make([]float64, n)
	for i := range centres {
		centres[i] = 0.5 * (faces[i] + faces[i+1])
	}
	return faces, centres
}

// Value returns a field at cell (i, j, k)
func (b *Block) Value(f Field, i, j, k int) float64 {
	return float64(b.Fields[f][b.Index(i, j, k)])
}

// Grid is a forest of AMR blocks. It is owned by the data-reading collaborator
// and must not be modified while a render is in progress
type Grid struct {
	Coords     metric.Coordinates
	RootBlocks [3]int
	MaxLevel   int
	Blocks     []Block
}

// Validate checks array shapes
func (g *Grid) Validate() error {
	if len(g.Blocks) == 0 {
		return fmt.Errorf("grid has no blocks")
	}
	for n := range g.Blocks {
		b := &g.Blocks[n]
		n1, n2, n3 := b.Size()
		if n1 == 0 || n2 == 0 || n3 == 0 {
			return fmt.Errorf("block %d: empty cell-centre arrays", n)
		}
		if len(b.X1F) != n1+1 || len(b.X2F) != n2+1 || len(b.X3F) != n3+1 {
			return fmt.Errorf("block %d: face arrays must have one more entry than cell arrays", n)
		}
		for _, faces := range [][]float64{b.X1F, b.X2F, b.X3F} {
			if floats.HasNaN(faces) || !sortedStrict(faces) {
				return fmt.Errorf("block %d: face coordinates must be strictly increasing", n)
			}
		}
		for f := Field(0); f < numFields; f++ {
			if len(b.Fields[f]) != n1*n2*n3 {
				return fmt.Errorf("block %d: field %s has %d values, want %d", n, f, len(b.Fields[f]), n1*n2*n3)
			}
		}
	}
	return nil
}

func sortedStrict(s []float64) bool {
	for i := 1; i < len(s); i++ {
		if !(s[i] > s[i-1]) {
			return false
		}
	}
	return true
}

// Locate returns the index of the block containing a grid-coordinate point,
// or -1. The hint is tried first
func (g *Grid) Locate(x1, x2, x3 float64, hint int) int {
	if hint >= 0 && hint < len(g.Blocks) && g.Blocks[hint].Contains(x1, x2, x3) {
		return hint
	}
	for n := range g.Blocks {
		if g.Blocks[n].Contains(x1, x2, x3) {
			return n
		}
	}
	return -1
}
