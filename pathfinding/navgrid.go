package pathfinding

import (
	"encoding/json"
	"io"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/pathplanner/logging"
	"go.viam.com/pathplanner/path"
)

// Default field dimensions used when no navigation grid is available.
const (
	DefaultFieldLength = 16.54
	DefaultFieldWidth  = 8.02
	DefaultNodeSize    = 0.2
)

// FieldSize is the size of the field in meters.
type FieldSize struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NavGrid is the static occupancy grid of the field. Grid is indexed [row][column], rows running
// along +Y and columns along +X; true marks an obstacle.
type NavGrid struct {
	NodeSize  float64   `json:"nodeSizeMeters"`
	Grid      [][]bool  `json:"grid"`
	FieldSize FieldSize `json:"field_size"`
}

// DefaultNavGrid is an empty grid over the default field.
func DefaultNavGrid() *NavGrid {
	return NewEmptyNavGrid(DefaultFieldLength, DefaultFieldWidth, DefaultNodeSize)
}

// NewEmptyNavGrid returns an obstacle-free grid covering a length × width field.
func NewEmptyNavGrid(length, width, nodeSize float64) *NavGrid {
	cols, rows := cellsFor(length, nodeSize), cellsFor(width, nodeSize)
	grid := make([][]bool, rows)
	for r := range grid {
		grid[r] = make([]bool, cols)
	}
	return &NavGrid{NodeSize: nodeSize, Grid: grid, FieldSize: FieldSize{X: length, Y: width}}
}

// ReadNavGrid parses a navigation grid file.
func ReadNavGrid(r io.Reader) (*NavGrid, error) {
	var grid NavGrid
	if err := json.NewDecoder(r).Decode(&grid); err != nil {
		return nil, errors.Wrap(err, "malformed navgrid")
	}
	if !(grid.NodeSize > 0) {
		return nil, path.NewInvalidInputError("navgrid node size must be positive, got %v", grid.NodeSize)
	}
	if len(grid.Grid) == 0 || len(grid.Grid[0]) == 0 {
		return nil, path.NewInvalidInputError("navgrid has no cells")
	}
	return &grid, nil
}

// LoadNavGrid reads the navigation grid of a deploy directory.
func LoadNavGrid(loader *path.Loader) (*NavGrid, error) {
	f, err := loader.Open(path.NavGridFile, "")
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	return ReadNavGrid(f)
}

// Columns is the number of cells along X.
func (g *NavGrid) Columns() int {
	if len(g.Grid) == 0 {
		return 0
	}
	return len(g.Grid[0])
}

// Rows is the number of cells along Y.
func (g *NavGrid) Rows() int {
	return len(g.Grid)
}

// LoadNavGridOrDefault is LoadNavGrid falling back to DefaultNavGrid when the deploy directory
// has no usable grid.
func LoadNavGridOrDefault(loader *path.Loader, logger logging.Logger) *NavGrid {
	grid, err := LoadNavGrid(loader)
	if err != nil {
		logger.Warnw("using default navgrid", "error", err)
		return DefaultNavGrid()
	}
	return grid
}

func cellsFor(length, nodeSize float64) int {
	return int(math.Ceil(length / nodeSize))
}
