package redact

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

var (
	logoScales = []float64{0.5, 0.75, 1.0, 1.25, 1.5}
	logoCrops  = []float64{1.0, 0.9}
)

const (
	maxWorkSide    = 800
	minTemplate    = 8
	coarseMinSide  = 8
	coarseSlack    = 0.25
	maxCandidates  = 32
	nmsOverlapFrac = 0.3
)

// DecodeLogo decodes an encoded reference logo. A nil or empty input yields a nil image.
func DecodeLogo(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode client logo: %w", err)
	}
	return img, nil
}

// LogoMatcher locates a reference logo in image regions with multi-scale normalized cross-correlation.
type LogoMatcher struct {
	reference *plane
	threshold float32
}

// NewLogoMatcher returns nil when ref is nil or flat.
func NewLogoMatcher(ref image.Image, threshold float32) *LogoMatcher {
	if ref == nil || ref.Bounds().Empty() {
		return nil
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	p := toPlane(ref)
	if _, sd := p.stats(); sd == 0 {
		return nil
	}
	return &LogoMatcher{reference: p, threshold: threshold}
}

// Match returns non-overlapping logo occurrences in img, boxes in img coordinates, best first.
func (m *LogoMatcher) Match(img image.Image) []entity.LogoMatch {
	if m == nil || img == nil || img.Bounds().Empty() {
		return nil
	}
	bounds := img.Bounds()
	work := 1.0
	if side := max(bounds.Dx(), bounds.Dy()); side > maxWorkSide {
		work = float64(maxWorkSide) / float64(side)
	}
	hay := toPlane(img)
	if work < 1 {
		hay = hay.resize(int(float64(hay.w)*work), int(float64(hay.h)*work))
	}

	hs := newHaystack(hay)
	coarse := make(map[int]*haystack)
	var found []scored
	for _, crop := range logoCrops {
		ref := m.reference.cropCenter(crop)
		for _, s := range logoScales {
			tw := int(math.Round(float64(ref.w) * s * work))
			th := int(math.Round(float64(ref.h) * s * work))
			if tw < minTemplate || th < minTemplate || tw > hay.w || th > hay.h {
				continue
			}
			tpl := ref.resize(tw, th)
			found = append(found, m.search(hs, coarse, tpl)...)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if math.Abs(a.score-b.score) > 1e-6 {
			return a.score > b.score
		}
		return a.box.Dx()*a.box.Dy() > b.box.Dx()*b.box.Dy()
	})
	var out []entity.LogoMatch
	var kept []image.Rectangle
	for _, c := range found {
		if overlapsKept(c.box, kept) {
			continue
		}
		kept = append(kept, c.box)
		box := image.Rect(
			int(float64(c.box.Min.X)/work), int(float64(c.box.Min.Y)/work),
			int(math.Ceil(float64(c.box.Max.X)/work)), int(math.Ceil(float64(c.box.Max.Y)/work)),
		).Add(bounds.Min).Intersect(bounds)
		out = append(out, entity.LogoMatch{Box: box, Similarity: float32(c.score)})
	}
	return out
}

type scored struct {
	box   image.Rectangle
	score float64
}

// haystack is a search image with its summed-area tables.
type haystack struct {
	*plane
	sum, sq []float64
}

func newHaystack(p *plane) *haystack {
	sum, sq := p.integrals()
	return &haystack{plane: p, sum: sum, sq: sq}
}

// search runs a coarse pass on a downsampled pair, then refines promising cells at full resolution.
func (m *LogoMatcher) search(hs *haystack, pyramid map[int]*haystack, tpl *plane) []scored {
	thr := float64(m.threshold)
	f := 1
	for f < 4 && min(tpl.w, tpl.h)/(f*2) >= coarseMinSide {
		f *= 2
	}
	if f == 1 {
		return collect(hs, tpl, thr, 0, 0, hs.w-tpl.w, hs.h-tpl.h)
	}

	ch, ok := pyramid[f]
	if !ok {
		ch = newHaystack(hs.resize(hs.w/f, hs.h/f))
		pyramid[f] = ch
	}
	ct := tpl.resize(tpl.w/f, tpl.h/f)
	coarse := collect(ch, ct, thr-coarseSlack, 0, 0, ch.w-ct.w, ch.h-ct.h)
	sort.Slice(coarse, func(i, j int) bool { return coarse[i].score > coarse[j].score })
	if len(coarse) > maxCandidates {
		coarse = coarse[:maxCandidates]
	}

	var out []scored
	for _, c := range coarse {
		x0, y0 := c.box.Min.X*f-f, c.box.Min.Y*f-f
		best := collect(hs, tpl, thr, x0, y0, x0+2*f, y0+2*f)
		if len(best) == 0 {
			continue
		}
		sort.Slice(best, func(i, j int) bool { return best[i].score > best[j].score })
		out = append(out, best[0])
	}
	return out
}

// collect scores every placement with top-left in [x0,x1]x[y0,y1] and keeps those at or above thr.
func collect(hs *haystack, tpl *plane, thr float64, x0, y0, x1, y1 int) []scored {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, hs.w-tpl.w), min(y1, hs.h-tpl.h)
	if x1 < x0 || y1 < y0 {
		return nil
	}
	tmean, tsd := tpl.stats()
	if tsd == 0 {
		return nil
	}
	centered := make([]float64, len(tpl.pix))
	for i, v := range tpl.pix {
		centered[i] = float64(v) - tmean
	}
	tnorm := tsd * math.Sqrt(float64(len(tpl.pix)))
	n := float64(tpl.w * tpl.h)

	var out []scored
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			s := rectSum(hs.sum, hs.w+1, x, y, tpl.w, tpl.h)
			q := rectSum(hs.sq, hs.w+1, x, y, tpl.w, tpl.h)
			variance := q - s*s/n
			if variance <= 1e-6 {
				continue
			}
			var cross float64
			for ty := 0; ty < tpl.h; ty++ {
				row := hs.pix[(y+ty)*hs.w+x:]
				trow := centered[ty*tpl.w:]
				for tx := 0; tx < tpl.w; tx++ {
					cross += trow[tx] * float64(row[tx])
				}
			}
			score := cross / (tnorm * math.Sqrt(variance))
			if score >= thr {
				out = append(out, scored{box: image.Rect(x, y, x+tpl.w, y+tpl.h), score: score})
			}
		}
	}
	return out
}

func overlapsKept(r image.Rectangle, kept []image.Rectangle) bool {
	area := float64(r.Dx() * r.Dy())
	for _, k := range kept {
		in := r.Intersect(k)
		if in.Empty() {
			continue
		}
		small := math.Min(area, float64(k.Dx()*k.Dy()))
		if float64(in.Dx()*in.Dy()) > nmsOverlapFrac*small {
			return true
		}
	}
	return false
}

// Mask returns a copy of img with every box filled black.
func Mask(img image.Image, boxes []image.Rectangle) image.Image {
	if len(boxes) == 0 {
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	black := image.NewUniform(color.Black)
	for _, box := range boxes {
		draw.Draw(out, box.Intersect(b), black, image.Point{}, draw.Src)
	}
	return out
}

// plane is a float32 grayscale raster.
type plane struct {
	w, h int
	pix  []float32
}

func toPlane(img image.Image) *plane {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	p := &plane{w: b.Dx(), h: b.Dy(), pix: make([]float32, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			p.pix[y*p.w+x] = float32(g.Pix[y*g.Stride+x])
		}
	}
	return p
}

func (p *plane) gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, p.w, p.h))
	for i, v := range p.pix {
		g.Pix[i] = uint8(math.Max(0, math.Min(255, float64(v))))
	}
	return g
}

func (p *plane) resize(w, h int) *plane {
	if w == p.w && h == p.h {
		return p
	}
	w, h = max(w, 1), max(h, 1)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), p.gray(), image.Rect(0, 0, p.w, p.h), draw.Src, nil)
	return toPlane(dst)
}

func (p *plane) cropCenter(frac float64) *plane {
	if frac >= 1 {
		return p
	}
	cw, ch := int(float64(p.w)*frac), int(float64(p.h)*frac)
	ox, oy := (p.w-cw)/2, (p.h-ch)/2
	out := &plane{w: cw, h: ch, pix: make([]float32, cw*ch)}
	for y := 0; y < ch; y++ {
		copy(out.pix[y*cw:(y+1)*cw], p.pix[(y+oy)*p.w+ox:(y+oy)*p.w+ox+cw])
	}
	return out
}

func (p *plane) stats() (mean, sd float64) {
	if len(p.pix) == 0 {
		return 0, 0
	}
	var s, q float64
	for _, v := range p.pix {
		s += float64(v)
		q += float64(v) * float64(v)
	}
	n := float64(len(p.pix))
	mean = s / n
	variance := q/n - mean*mean
	if variance <= 1e-9 {
		return mean, 0
	}
	return mean, math.Sqrt(variance)
}

// integrals returns summed-area tables of values and squared values, (w+1)x(h+1).
func (p *plane) integrals() (sum, sq []float64) {
	stride := p.w + 1
	sum = make([]float64, stride*(p.h+1))
	sq = make([]float64, stride*(p.h+1))
	for y := 1; y <= p.h; y++ {
		var rs, rq float64
		for x := 1; x <= p.w; x++ {
			v := float64(p.pix[(y-1)*p.w+x-1])
			rs += v
			rq += v * v
			sum[y*stride+x] = sum[(y-1)*stride+x] + rs
			sq[y*stride+x] = sq[(y-1)*stride+x] + rq
		}
	}
	return sum, sq
}

func rectSum(t []float64, stride, x, y, w, h int) float64 {
	return t[(y+h)*stride+x+w] - t[y*stride+x+w] - t[(y+h)*stride+x] + t[y*stride+x]
}
