package barcode

import (
	"errors"
	"fmt"
)

// Matrix is an immutable width x height grid of symbol modules.
type Matrix struct {
	width  int
	height int
	bits   []bool
}

// NewMatrix builds a matrix from row-major module values. The slice is copied.
func NewMatrix(width, height int, modules []bool) (*Matrix, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid matrix size %dx%d", width, height)
	}
	if len(modules) != width*height {
		return nil, fmt.Errorf("matrix expects %d modules, got %d", width*height, len(modules))
	}
	bits := make([]bool, len(modules))
	copy(bits, modules)
	return &Matrix{width: width, height: height, bits: bits}, nil
}

// MatrixFromRows parses rows of '#'/'1' (set) and '.'/'0'/' ' (unset) characters.
func MatrixFromRows(rows ...string) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, errors.New("matrix needs at least one row")
	}
	w := len(rows[0])
	bits := make([]bool, 0, w*len(rows))
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has width %d, want %d", y, len(row), w)
		}
		for x := 0; x < w; x++ {
			switch row[x] {
			case '#', '1', 'X', 'x':
				bits = append(bits, true)
			case '.', '0', ' ':
				bits = append(bits, false)
			default:
				return nil, fmt.Errorf("row %d col %d: unexpected module %q", y, x, row[x])
			}
		}
	}
	return NewMatrix(w, len(rows), bits)
}

// Width returns the number of columns.
func (m *Matrix) Width() int { return m.width }

// Height returns the number of rows.
func (m *Matrix) Height() int { return m.height }

// At reports whether module (x, y) is set. Out of range coordinates are unset.
func (m *Matrix) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.bits[y*m.width+x]
}

// String renders the matrix as '#'/'.' rows, mainly for test failures.
func (m *Matrix) String() string {
	buf := make([]byte, 0, (m.width+1)*m.height)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.At(x, y) {
				buf = append(buf, '#')
			} else {
				buf = append(buf, '.')
			}
		}
		buf = append(buf, '\n')
	}
	return string(buf)
}
