package ocr

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// MinSide is the smallest width/height handed to the provider before upscaling kicks in.
const MinSide = 500

// Preprocess binarizes img with Otsu's threshold and doubles small images.
// It returns the processed image and the scale applied relative to img.
func Preprocess(img image.Image) (image.Image, float64) {
	gray := ToGray(img)
	bin := otsuBinarize(gray)

	b := bin.Bounds()
	if b.Dx() >= MinSide && b.Dy() >= MinSide {
		return bin, 1
	}
	const scale = 2.0
	dst := image.NewGray(image.Rect(0, 0, b.Dx()*2, b.Dy()*2))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), bin, b, xdraw.Src, nil)
	return dst, scale
}

// ToGray converts img to an 8-bit grayscale image anchored at the origin.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

func otsuBinarize(g *image.Gray) *image.Gray {
	var hist [256]int
	for _, p := range g.Pix {
		hist[p]++
	}
	t := otsuThreshold(hist, len(g.Pix))
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		if p > t {
			out.Pix[i] = 255
		}
	}
	return out
}

// otsuThreshold picks the level maximizing between-class variance.
func otsuThreshold(hist [256]int, total int) uint8 {
	if total == 0 {
		return 127
	}
	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}
	var sumB, wB, best float64
	var threshold uint8
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i * hist[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(i)
		}
	}
	return threshold
}
