package degradation

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/latentlab/proficiency/internal/application"
	domain "github.com/latentlab/proficiency/internal/domain/samples"
)

// Options bound the random draws of the elliptical blur region.
// Area is a percentage of the image area, eccentricity follows
// e = sqrt(1 - b²/a²).
type Options struct {
	MinAreaPercent  float64
	MaxAreaPercent  float64
	MinEccentricity float64
	MaxEccentricity float64
	DisplayWidth    int // output width after re-encode, aspect preserved
}

// Engine simulates a smudged partial print: a uniformly blurred copy of
// the source is composited back only inside a randomly placed rotated
// ellipse, the rest of the image stays pixel-identical until the final
// resize.
type Engine struct {
	Rand application.Rand
	Log  *zap.Logger
	Opts Options
}

func NewEngine(rnd application.Rand, log *zap.Logger, opts Options) *Engine {
	return &Engine{Rand: rnd, Log: log, Opts: opts}
}

// Degrade reads sourcePath, applies the elliptical partial blur and
// writes the resized result to outputPath. A missing or undecodable
// source is fatal for the enclosing sample request.
func (e *Engine) Degrade(sourcePath, outputPath string) (*domain.DegradationParams, error) {
	src, err := imaging.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrAssetMissing, sourcePath, err)
	}
	canvas := imaging.Clone(src)
	w, h := canvas.Bounds().Dx(), canvas.Bounds().Dy()

	params := e.draw(w, h)
	e.apply(canvas, params)

	out := canvas
	if e.Opts.DisplayWidth > 0 && w != e.Opts.DisplayWidth {
		out = imaging.Resize(canvas, e.Opts.DisplayWidth, 0, imaging.Lanczos)
	}
	if err := imaging.Save(out, outputPath); err != nil {
		return nil, fmt.Errorf("saving degraded image: %w", err)
	}

	e.Log.Debug("image degraded",
		zap.String("source", sourcePath),
		zap.Float64("area_percent", params.AreaPercent),
		zap.Float64("eccentricity", params.Eccentricity),
		zap.Int("center_x", params.CenterX),
		zap.Int("center_y", params.CenterY))
	return params, nil
}

// draw picks the ellipse for a w×h image. Semi-axes follow from
// A = π·a·b and b = a·sqrt(1-e²); the center keeps the un-rotated
// axis-aligned extent inside the frame, which conservatively bounds the
// rotated ellipse as well.
func (e *Engine) draw(w, h int) *domain.DegradationParams {
	areaPct := e.uniform(e.Opts.MinAreaPercent, e.Opts.MaxAreaPercent)
	ecc := e.uniform(e.Opts.MinEccentricity, e.Opts.MaxEccentricity)

	area := float64(w) * float64(h) * areaPct / 100
	flat := math.Sqrt(1 - ecc*ecc)
	a := int(math.Sqrt(area / (math.Pi * flat)))
	b := int(float64(a) * flat)

	// Clamp for frames too small to hold the drawn ellipse.
	if 2*a >= w {
		a = (w - 1) / 2
	}
	if 2*b >= h {
		b = (h - 1) / 2
	}
	if a < 1 {
		a = 1
	}
	if b < 1 {
		b = 1
	}

	cx, cy := a, b
	if span := w - 2*a; span > 0 {
		cx = a + e.Rand.Intn(span)
	}
	if span := h - 2*b; span > 0 {
		cy = b + e.Rand.Intn(span)
	}

	return &domain.DegradationParams{
		CenterX:      cx,
		CenterY:      cy,
		RadiusX:      a,
		RadiusY:      b,
		RotationDeg:  e.Rand.Float64() * 360,
		AreaPercent:  areaPct,
		Eccentricity: ecc,
	}
}

// apply composites the blurred copy into img inside the rotated ellipse.
func (e *Engine) apply(img *image.NRGBA, p *domain.DegradationParams) {
	// Blur strength tracks the region size: kernel max(15, min(a,b)/2)
	// forced odd, sigma derived from the kernel the usual way.
	k := p.RadiusX
	if p.RadiusY < k {
		k = p.RadiusY
	}
	k /= 2
	if k < 15 {
		k = 15
	}
	if k%2 == 0 {
		k++
	}
	sigma := 0.3*(float64(k-1)*0.5-1) + 0.8

	blurred := imaging.Blur(img, sigma)

	sin, cos := math.Sincos(p.RotationDeg * math.Pi / 180)
	ax, ay := float64(p.RadiusX), float64(p.RadiusY)
	reach := int(math.Ceil(math.Max(ax, ay)))
	bounds := img.Bounds()

	for y := p.CenterY - reach; y <= p.CenterY+reach; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := p.CenterX - reach; x <= p.CenterX+reach; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			dx, dy := float64(x-p.CenterX), float64(y-p.CenterY)
			xr := dx*cos + dy*sin
			yr := -dx*sin + dy*cos
			if (xr*xr)/(ax*ax)+(yr*yr)/(ay*ay) <= 1 {
				img.SetNRGBA(x, y, blurred.NRGBAAt(x, y))
			}
		}
	}
}

func (e *Engine) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + e.Rand.Float64()*(hi-lo)
}
