package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	freqs := []float64{9900, 9800, 9700}
	ampls := []float64{1.1, 1.0, 0.9}

	p, err := Render("sweep", freqs, ampls)
	require.NoError(t, err)
	assert.Equal(t, "freq", p.X.Label.Text)
	assert.Equal(t, "ampl", p.Y.Label.Text)
	assert.Equal(t, 0.0, p.Y.Min)
}

func TestRenderErrors(t *testing.T) {
	_, err := Render("sweep", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = Render("sweep", []float64{1, 2}, []float64{1})
	assert.Error(t, err)
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.png")
	freqs := []float64{9900, 9800, 9700, 9600}
	ampls := []float64{1.1, 1.0, 0.9, 0.85}

	require.NoError(t, SavePNG(path, "sweep", freqs, ampls))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
