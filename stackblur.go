// StackBlur is a fast approximation of a Gaussian blur, described here:
// http://incubator.quasimondo.com/processing/fast_blur_deluxe.php

package photolite

import (
	"image"
)

// maxBlurRadius is the largest radius covered by the lookup tables.
const maxBlurRadius = 254

type blurStack struct {
	r, g, b, a uint32
	next       *blurStack
}

// sums accumulates the channel values of the pixels inside the blur window.
type sums struct {
	r, g, b, a uint32
}

func (s *sums) addPixel(pix []uint8, i int, w uint32) {
	s.r += uint32(pix[i]) * w
	s.g += uint32(pix[i+1]) * w
	s.b += uint32(pix[i+2]) * w
	s.a += uint32(pix[i+3]) * w
}

func (s *sums) addStack(bs *blurStack) {
	s.r += bs.r
	s.g += bs.g
	s.b += bs.b
	s.a += bs.a
}

func (s *sums) subStack(bs *blurStack) {
	s.r -= bs.r
	s.g -= bs.g
	s.b -= bs.b
	s.a -= bs.a
}

func (s *sums) add(o sums) {
	s.r += o.r
	s.g += o.g
	s.b += o.b
	s.a += o.a
}

func (s *sums) sub(o sums) {
	s.r -= o.r
	s.g -= o.g
	s.b -= o.b
	s.a -= o.a
}

func (bs *blurStack) load(pix []uint8, i int) {
	bs.r = uint32(pix[i])
	bs.g = uint32(pix[i+1])
	bs.b = uint32(pix[i+2])
	bs.a = uint32(pix[i+3])
}

var mulTable = [...]uint32{
	512, 512, 456, 512, 328, 456, 335, 512, 405, 328, 271, 456, 388, 335, 292, 512,
	454, 405, 364, 328, 298, 271, 496, 456, 420, 388, 360, 335, 312, 292, 273, 512,
	482, 454, 428, 405, 383, 364, 345, 328, 312, 298, 284, 271, 259, 496, 475, 456,
	437, 420, 404, 388, 374, 360, 347, 335, 323, 312, 302, 292, 282, 273, 265, 512,
	497, 482, 468, 454, 441, 428, 417, 405, 394, 383, 373, 364, 354, 345, 337, 328,
	320, 312, 305, 298, 291, 284, 278, 271, 265, 259, 507, 496, 485, 475, 465, 456,
	446, 437, 428, 420, 412, 404, 396, 388, 381, 374, 367, 360, 354, 347, 341, 335,
	329, 323, 318, 312, 307, 302, 297, 292, 287, 282, 278, 273, 269, 265, 261, 512,
	505, 497, 489, 482, 475, 468, 461, 454, 447, 441, 435, 428, 422, 417, 411, 405,
	399, 394, 389, 383, 378, 373, 368, 364, 359, 354, 350, 345, 341, 337, 332, 328,
	324, 320, 316, 312, 309, 305, 301, 298, 294, 291, 287, 284, 281, 278, 274, 271,
	268, 265, 262, 259, 257, 507, 501, 496, 491, 485, 480, 475, 470, 465, 460, 456,
	451, 446, 442, 437, 433, 428, 424, 420, 416, 412, 408, 404, 400, 396, 392, 388,
	385, 381, 377, 374, 370, 367, 363, 360, 357, 354, 350, 347, 344, 341, 338, 335,
	332, 329, 326, 323, 320, 318, 315, 312, 310, 307, 304, 302, 299, 297, 294, 292,
	289, 287, 285, 282, 280, 278, 275, 273, 271, 269, 267, 265, 263, 261, 259,
}

var shgTable = [...]uint32{
	9, 11, 12, 13, 13, 14, 14, 15, 15, 15, 15, 16, 16, 16, 16, 17,
	17, 17, 17, 17, 17, 17, 18, 18, 18, 18, 18, 18, 18, 18, 18, 19,
	19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 20, 20, 20,
	20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 21,
	21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21,
	21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 22, 22, 22, 22, 22, 22,
	22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22,
	22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 22, 23,
	23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23,
	23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23,
	23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23, 23,
	23, 23, 23, 23, 23, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
	24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
	24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
	24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
	24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24, 24,
}

// newBlurRing links div stack cells into a ring and returns its start and
// the cell radius+1 positions further.
func newBlurRing(div, radius int) (start, end *blurStack) {
	start = &blurStack{}
	cell := start
	for i := 1; i < div; i++ {
		cell.next = &blurStack{}
		cell = cell.next
		if i == radius+1 {
			end = cell
		}
	}
	cell.next = start
	if end == nil {
		end = start
	}
	return start, end
}

// stackBlur blurs img in place with two separable passes, horizontal then
// vertical. The radius is clamped to [1, maxBlurRadius].
func stackBlur(img *image.NRGBA, radius int) *image.NRGBA {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	if width == 0 || height == 0 {
		return img
	}
	radius = max(1, min(radius, maxBlurRadius))

	pix := img.Pix
	stride := img.Stride
	div := radius + radius + 1
	radiusPlus1 := radius + 1
	sumFactor := uint32(radiusPlus1 * (radiusPlus1 + 1) / 2)
	mulSum := mulTable[radius]
	shgSum := shgTable[radius]

	stackStart, stackEnd := newBlurRing(div, radius)

	// divides a weighted window sum by the total weight
	scale := func(v uint32) uint8 {
		return uint8((uint64(v) * uint64(mulSum)) >> shgSum)
	}

	// blurLine runs the sliding window over n pixels starting at offset
	// first, step bytes apart.
	blurLine := func(first, step, n int) {
		var sum, inSum, outSum sums

		outSum.addPixel(pix, first, uint32(radiusPlus1))
		sum.addPixel(pix, first, sumFactor)

		stack := stackStart
		for i := 0; i < radiusPlus1; i++ {
			stack.load(pix, first)
			stack = stack.next
		}
		for i := 1; i < radiusPlus1; i++ {
			p := first + min(i, n-1)*step
			stack.load(pix, p)
			sum.addPixel(pix, p, uint32(radiusPlus1-i))
			inSum.addPixel(pix, p, 1)
			stack = stack.next
		}

		stackIn := stackStart
		stackOut := stackEnd
		for i := 0; i < n; i++ {
			p := first + i*step
			pa := scale(sum.a)
			pix[p+3] = pa
			if pa != 0 {
				pix[p] = scale(sum.r)
				pix[p+1] = scale(sum.g)
				pix[p+2] = scale(sum.b)
			} else {
				pix[p], pix[p+1], pix[p+2] = 0, 0, 0
			}

			sum.sub(outSum)
			outSum.subStack(stackIn)

			stackIn.load(pix, first+min(i+radiusPlus1, n-1)*step)
			inSum.addStack(stackIn)
			sum.add(inSum)
			stackIn = stackIn.next

			outSum.addStack(stackOut)
			inSum.subStack(stackOut)
			stackOut = stackOut.next
		}
	}

	for y := 0; y < height; y++ {
		blurLine(y*stride, 4, width)
	}
	for x := 0; x < width; x++ {
		blurLine(x*4, stride, height)
	}
	return img
}
