package annotation

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// dimFactor keeps 60% of the distance to white, a 40% lighten
const dimFactor = 0.6

var placeholderColor = color.RGBA{255, 255, 255, 255}

// ImageOpener loads patch images by path
type ImageOpener interface {
	Decode(path string) (image.Image, error)
	DecodeConfig(path string) (image.Config, error)
}

// FileImageOpener reads images from the local filesystem
type FileImageOpener struct{}

func (FileImageOpener) Decode(path string) (image.Image, error) {
	return DecodeImage(path)
}

func (FileImageOpener) DecodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}

func DecodeImage(filepath string) (image.Image, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// EncodePNG writes img as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// lighten applies new = 256 - (256 - old) * 0.6 to the colour channels of
// the non-premultiplied pixels, so translucent tiles keep a valid colour
func lighten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	for i := 0; i < len(dst.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := 256 - (256-float64(dst.Pix[i+c]))*dimFactor
			if v > 255 {
				v = 255
			}
			dst.Pix[i+c] = uint8(v)
		}
	}
	return dst
}

func blankTile(width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{placeholderColor}, image.Point{}, draw.Src)
	return dst
}

// containSize is the largest size with the image's aspect ratio fitting in size x size
func containSize(width, height, size int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}
	imRatio := float64(width) / float64(height)
	if imRatio > 1 {
		h := int(float64(height)/float64(width)*float64(size) + 0.5)
		return size, max(h, 1)
	}
	if imRatio < 1 {
		w := int(float64(width)/float64(height)*float64(size) + 0.5)
		return max(w, 1), size
	}
	return size, size
}

func scale(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// fitForDisplay scales to resizeTo when set (up or down), otherwise shrinks
// images whose longest side exceeds maxSize
func fitForDisplay(img image.Image, resizeTo, maxSize int) image.Image {
	b := img.Bounds()
	if resizeTo > 0 {
		w, h := containSize(b.Dx(), b.Dy(), resizeTo)
		return scale(img, w, h)
	}
	if maxSize > 0 && max(b.Dx(), b.Dy()) > maxSize {
		w, h := containSize(b.Dx(), b.Dy(), maxSize)
		return scale(img, w, h)
	}
	return img
}
