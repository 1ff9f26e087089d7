package translate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

var vp = schemas.Viewport{Width: 1280, Height: 800}

func TestNormalizedScaling(t *testing.T) {
	tr := New(vp, 0)

	cases := []struct {
		name string
		in   schemas.Point
		want schemas.Point
	}{
		{"origin", schemas.Point{X: 0, Y: 0}, schemas.Point{X: 0, Y: 0}},
		{"center", schemas.Point{X: 500, Y: 500}, schemas.Point{X: 640, Y: 400}},
		{"quarter", schemas.Point{X: 250, Y: 750}, schemas.Point{X: 320, Y: 600}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tr.ToViewport(tc.in, UnitNormalized1000)
			require.NoError(t, err)
			assert.InDelta(t, tc.want.X, got.X, 0.01)
			assert.InDelta(t, tc.want.Y, got.Y, 0.01)
		})
	}
}

func TestNormalizedMaxClampsToLastPixel(t *testing.T) {
	// 1000 scales exactly to the viewport span. The full 0-1000 grid is
	// valid input, so the maximum lands on the last addressable pixel
	// even with no tolerance slack configured.
	for _, tol := range []float64{0, 2, 24} {
		tr := New(vp, tol)
		got, err := tr.ToViewport(schemas.Point{X: 1000, Y: 1000}, UnitNormalized1000)
		require.NoError(t, err, "tolerance %v", tol)
		assert.Equal(t, float64(vp.Width-1), got.X)
		assert.Equal(t, float64(vp.Height-1), got.Y)
	}

	// One past the span with zero tolerance is still an error.
	tr := New(vp, 0)
	_, err := tr.ToViewport(schemas.Point{X: float64(vp.Width) + 1, Y: 10}, UnitPixel)
	require.Error(t, err)
	assert.Equal(t, schemas.ReasonCoordinateOutOfRange, schemas.ReasonOf(err))
}

func TestPixelPassthrough(t *testing.T) {
	tr := New(vp, 0)
	got, err := tr.ToViewport(schemas.Point{X: 17, Y: 793}, UnitPixel)
	require.NoError(t, err)
	assert.Equal(t, schemas.Point{X: 17, Y: 793}, got)
}

func TestToleranceBand(t *testing.T) {
	tr := New(vp, 24)

	t.Run("slight overshoot clamps", func(t *testing.T) {
		got, err := tr.ToViewport(schemas.Point{X: 1290, Y: 400}, UnitPixel)
		require.NoError(t, err)
		assert.Equal(t, float64(1279), got.X)
		assert.Equal(t, float64(400), got.Y)
	})

	t.Run("slight negative clamps to zero", func(t *testing.T) {
		got, err := tr.ToViewport(schemas.Point{X: -10, Y: -24}, UnitPixel)
		require.NoError(t, err)
		assert.Equal(t, schemas.Point{X: 0, Y: 0}, got)
	})

	t.Run("beyond tolerance errors", func(t *testing.T) {
		_, err := tr.ToViewport(schemas.Point{X: 1400, Y: 400}, UnitPixel)
		require.Error(t, err)
		assert.Equal(t, schemas.ReasonCoordinateOutOfRange, schemas.ReasonOf(err))

		_, err = tr.ToViewport(schemas.Point{X: 100, Y: -60}, UnitPixel)
		require.Error(t, err)
		assert.Equal(t, schemas.ReasonCoordinateOutOfRange, schemas.ReasonOf(err))
	})
}

func TestErrorCarriesNoPartialPoint(t *testing.T) {
	tr := New(vp, 0)
	got, err := tr.ToViewport(schemas.Point{X: 5000, Y: 100}, UnitNormalized1000)
	require.Error(t, err)
	assert.Zero(t, got)
}

func TestUnknownUnit(t *testing.T) {
	tr := New(vp, 0)
	_, err := tr.ToViewport(schemas.Point{X: 1, Y: 1}, Unit("percent"))
	require.Error(t, err)
	assert.Equal(t, schemas.ReasonUnsupportedInstruction, schemas.ReasonOf(err))
}

func TestDeterminism(t *testing.T) {
	tr := New(vp, 24)
	p := schemas.Point{X: 333, Y: 667}
	first, err := tr.ToViewport(p, UnitNormalized1000)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := tr.ToViewport(p, UnitNormalized1000)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNonFiniteCoordinates(t *testing.T) {
	tr := New(vp, 24)
	for _, bad := range []float64{math.NaN(), math.Inf(1)} {
		_, err := tr.ToViewport(schemas.Point{X: bad, Y: 10}, UnitPixel)
		require.Error(t, err)
		var te *schemas.TaskError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, schemas.ReasonCoordinateOutOfRange, te.Reason)
	}
}
