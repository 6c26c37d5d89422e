package renderer

import (
	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
	"github.com/df07/go-kerr-raytracer/pkg/radiation"
)

// PixelDiagnostics records how a pixel's ray ended
type PixelDiagnostics struct {
	Status       geodesic.Status
	Steps        int
	Invalid      bool
	Fallbacks    int
	NullResidual float64
}

// Block is a square of Size x Size pixels at one refinement level. Row and Col
// locate the block among the blocks of its level; pixels are stored row-major
type Block struct {
	Level    int
	Row, Col int
	Size     int

	Stokes []radiation.Stokes
	Pixels []PixelDiagnostics
	Refine bool // Set when the block spawned children
}

// NewBlock allocates a block's pixel storage
func NewBlock(level, row, col, size int) *Block {
	return &Block{
		Level:  level,
		Row:    row,
		Col:    col,
		Size:   size,
		Stokes: make([]radiation.Stokes, size*size),
		Pixels: make([]PixelDiagnostics, size*size),
	}
}

// NumPixels returns the number of pixels in the block
func (b *Block) NumPixels() int {
	return b.Size * b.Size
}

// PixelPosition returns the row and column of local pixel p in the image at
// the block's level
func (b *Block) PixelPosition(p int) (row, col int) {
	return b.Row*b.Size + p/b.Size, b.Col*b.Size + p%b.Size
}

// Children returns the four blocks covering this block at the next level
func (b *Block) Children() []*Block {
	children := make([]*Block, 0, 4)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			children = append(children, NewBlock(b.Level+1, 2*b.Row+i, 2*b.Col+j, b.Size))
		}
	}
	return children
}

// Level is every block rendered at one refinement level
type Level struct {
	Index      int
	Resolution int // Effective image resolution at this level
	Blocks     []*Block
}

// rootBlocks tiles a resolution x resolution image with blocks of blockSize
func rootBlocks(resolution, blockSize int) []*Block {
	n := resolution / blockSize
	blocks := make([]*Block, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			blocks = append(blocks, NewBlock(0, row, col, blockSize))
		}
	}
	return blocks
}
