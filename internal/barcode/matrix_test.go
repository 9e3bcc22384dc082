package barcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrix(t *testing.T) {
	bits := []bool{true, false, false, true}
	m, err := NewMatrix(2, 2, bits)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Width())
	assert.Equal(t, 2, m.Height())
	assert.True(t, m.At(0, 0))
	assert.False(t, m.At(1, 0))
	assert.False(t, m.At(0, 1))
	assert.True(t, m.At(1, 1))

	// Input slice is copied.
	bits[0] = false
	assert.True(t, m.At(0, 0))

	// Out of range reads are unset.
	assert.False(t, m.At(-1, 0))
	assert.False(t, m.At(2, 1))
}

func TestNewMatrix_Invalid(t *testing.T) {
	_, err := NewMatrix(0, 2, nil)
	require.Error(t, err)
	_, err = NewMatrix(2, 2, []bool{true})
	require.Error(t, err)
}

func TestMatrixFromRows(t *testing.T) {
	m, err := MatrixFromRows(
		"#..",
		".1.",
		"..X",
	)
	require.NoError(t, err)
	assert.Equal(t, "#..\n.#.\n..#\n", m.String())

	_, err = MatrixFromRows("##", "#")
	require.Error(t, err)
	_, err = MatrixFromRows("#?")
	require.Error(t, err)
	_, err = MatrixFromRows()
	require.Error(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	var reqErr error = &RequestError{Field: "text", Reason: "must not be empty"}
	assert.ErrorIs(t, reqErr, ErrInvalidRequest)
	assert.Equal(t, "invalid request: text must not be empty", reqErr.Error())

	cause := errors.New("bad digits")
	var encErr error = &EncodingError{Format: FormatEAN13, Err: cause}
	assert.ErrorIs(t, encErr, ErrEncoding)
	assert.ErrorIs(t, encErr, cause)
	assert.Contains(t, encErr.Error(), "ean13")

	var target *EncodingError
	require.ErrorAs(t, encErr, &target)
	assert.Equal(t, FormatEAN13, target.Format)

	assert.True(t, IsDecodeMiss(ErrDecodeMiss))
	assert.False(t, IsDecodeMiss(encErr))
}
