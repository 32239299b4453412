package degradation

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/latentlab/proficiency/internal/application"
	domain "github.com/latentlab/proficiency/internal/domain/samples"
)

func testOptions() Options {
	return Options{
		MinAreaPercent:  10,
		MaxAreaPercent:  25,
		MinEccentricity: 0.1,
		MaxEccentricity: 0.5,
		DisplayWidth:    200,
	}
}

func writeTestImage(t *testing.T, w, h int) string {
	t.Helper()
	// checkerboard, so blurring visibly changes pixels everywhere
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 235, G: 235, B: 235, A: 255}
			if (x/4+y/4)%2 == 0 {
				c = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "fingerprint_0001_v01.png")
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestDraw_ParamsWithinBounds(t *testing.T) {
	e := NewEngine(application.NewSeededRand(7), zap.NewNop(), testOptions())

	for i := 0; i < 500; i++ {
		p := e.draw(640, 480)

		assert.GreaterOrEqual(t, p.AreaPercent, 10.0)
		assert.LessOrEqual(t, p.AreaPercent, 25.0)
		assert.GreaterOrEqual(t, p.Eccentricity, 0.1)
		assert.LessOrEqual(t, p.Eccentricity, 0.5)
		assert.GreaterOrEqual(t, p.RotationDeg, 0.0)
		assert.Less(t, p.RotationDeg, 360.0)

		// axis-aligned extent fully inside the frame
		assert.GreaterOrEqual(t, p.CenterX-p.RadiusX, 0)
		assert.LessOrEqual(t, p.CenterX+p.RadiusX, 640)
		assert.GreaterOrEqual(t, p.CenterY-p.RadiusY, 0)
		assert.LessOrEqual(t, p.CenterY+p.RadiusY, 480)
	}
}

func TestDraw_TinyImageStillFits(t *testing.T) {
	e := NewEngine(application.NewSeededRand(7), zap.NewNop(), testOptions())

	p := e.draw(8, 8)
	assert.GreaterOrEqual(t, p.CenterX-p.RadiusX, 0)
	assert.LessOrEqual(t, p.CenterX+p.RadiusX, 8)
	assert.GreaterOrEqual(t, p.CenterY-p.RadiusY, 0)
	assert.LessOrEqual(t, p.CenterY+p.RadiusY, 8)
}

func TestDegrade_WritesResizedOutput(t *testing.T) {
	e := NewEngine(application.NewSeededRand(11), zap.NewNop(), testOptions())
	src := writeTestImage(t, 640, 480)
	out := filepath.Join(t.TempDir(), "QUESTIONADA.png")

	params, err := e.Degrade(src, out)
	require.NoError(t, err)
	require.NotNil(t, params)

	img, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx(), "output resized to display width")
	assert.Equal(t, 150, img.Bounds().Dy(), "aspect ratio preserved")
}

func TestDegrade_OnlyEllipseChanges(t *testing.T) {
	opts := testOptions()
	opts.DisplayWidth = 0 // keep source size so pixels are comparable
	e := NewEngine(application.NewSeededRand(3), zap.NewNop(), opts)

	src := writeTestImage(t, 320, 240)
	out := filepath.Join(t.TempDir(), "degraded.png")

	params, err := e.Degrade(src, out)
	require.NoError(t, err)

	orig, err := imaging.Open(src)
	require.NoError(t, err)
	degraded, err := imaging.Open(out)
	require.NoError(t, err)

	origN := imaging.Clone(orig)
	degN := imaging.Clone(degraded)

	// pixels clearly outside the ellipse's reach are untouched
	reach := params.RadiusX
	if params.RadiusY > reach {
		reach = params.RadiusY
	}
	var outside, changedOutside, changedInside int
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			dx, dy := x-params.CenterX, y-params.CenterY
			if dx*dx+dy*dy > (reach+1)*(reach+1) {
				outside++
				if origN.NRGBAAt(x, y) != degN.NRGBAAt(x, y) {
					changedOutside++
				}
			} else if origN.NRGBAAt(x, y) != degN.NRGBAAt(x, y) {
				changedInside++
			}
		}
	}
	require.Positive(t, outside)
	assert.Zero(t, changedOutside, "pixels outside the region must stay identical")
	assert.Positive(t, changedInside, "the region itself must actually blur")
}

func TestDegrade_MissingSourceIsFatal(t *testing.T) {
	e := NewEngine(application.NewSeededRand(1), zap.NewNop(), testOptions())

	_, err := e.Degrade("/nonexistent/fingerprint_0001_v01.png", filepath.Join(t.TempDir(), "out.png"))
	assert.ErrorIs(t, err, domain.ErrAssetMissing)
}
