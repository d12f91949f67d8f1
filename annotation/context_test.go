package annotation

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"testing"

	"golang.org/x/image/draw"
)

// memImages serves decoded images by path
type memImages map[string]image.Image

func (m memImages) Decode(path string) (image.Image, error) {
	img, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return img, nil
}

func (m memImages) DecodeConfig(path string) (image.Config, error) {
	img, err := m.Decode(path)
	if err != nil {
		return image.Config{}, err
	}
	b := img.Bounds()
	return image.Config{ColorModel: img.ColorModel(), Width: b.Dx(), Height: b.Dy()}, nil
}

func solidImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

var focalColor = color.RGBA{100, 50, 0, 255}

func testImages() memImages {
	return memImages{
		"/maps/a.png": solidImage(256, 256, focalColor),
		"/maps/b.png": solidImage(256, 256, focalColor),
		"/maps/c.png": solidImage(256, 256, focalColor),
		"/maps/d.png": solidImage(256, 256, focalColor),
	}
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestCompose(t *testing.T) {
	store := normalizeTestTable(t, gridTable)
	dimmed := color.RGBA{162, 132, 102, 255}
	white := color.RGBA{255, 255, 255, 255}

	t.Run("top left tile of a 2x2 parent", func(t *testing.T) {
		c := &Compositor{Store: store, Images: testImages(), Surrounding: 1}
		composite, err := c.Compose("a.png")
		if err != nil {
			t.Fatal(err)
		}
		if b := composite.Image.Bounds(); b.Dx() != 768 || b.Dy() != 768 {
			t.Fatalf("composite is %dx%d, want 768x768", b.Dx(), b.Dy())
		}
		want := []string{"", "", "", "", "a.png", "b.png", "", "c.png", "d.png"}
		if len(composite.Slots) != len(want) {
			t.Fatalf("slots = %v", composite.Slots)
		}
		blanks := 0
		for i := range want {
			if composite.Slots[i] != want[i] {
				t.Errorf("slot %d = %q, want %q", i, composite.Slots[i], want[i])
			}
			if composite.Slots[i] == "" {
				blanks++
			}
		}
		if blanks != 5 {
			t.Errorf("%d blank slots, want 5", blanks)
		}
		if got := rgbaAt(composite.Image, 300, 300); got != focalColor {
			t.Errorf("focal pixel = %v, want %v", got, focalColor)
		}
		if got := rgbaAt(composite.Image, 600, 300); got != dimmed {
			t.Errorf("neighbour pixel = %v, want %v", got, dimmed)
		}
		if got := rgbaAt(composite.Image, 10, 10); got != white {
			t.Errorf("blank pixel = %v, want %v", got, white)
		}
	})

	t.Run("grid side follows the radius", func(t *testing.T) {
		for _, s := range []int{0, 2} {
			c := &Compositor{Store: store, Images: testImages(), Surrounding: s}
			composite, err := c.Compose("d.png")
			if err != nil {
				t.Fatal(err)
			}
			side := 2*s + 1
			if len(composite.Slots) != side*side {
				t.Errorf("radius %d: %d slots, want %d", s, len(composite.Slots), side*side)
			}
			if b := composite.Image.Bounds(); b.Dx() != side*256 || b.Dy() != side*256 {
				t.Errorf("radius %d: composite is %dx%d", s, b.Dx(), b.Dy())
			}
			if len(composite.Warnings) != 0 {
				t.Errorf("radius %d: unexpected warnings %v", s, composite.Warnings)
			}
		}
	})

	t.Run("no dimming in context mode", func(t *testing.T) {
		c := &Compositor{Store: store, Images: testImages(), Surrounding: 1, NoDim: true}
		composite, err := c.Compose("a.png")
		if err != nil {
			t.Fatal(err)
		}
		if got := rgbaAt(composite.Image, 600, 300); got != focalColor {
			t.Errorf("neighbour pixel = %v, want %v", got, focalColor)
		}
	})

	t.Run("missing neighbour file is a blank tile", func(t *testing.T) {
		images := testImages()
		delete(images, "/maps/b.png")
		c := &Compositor{Store: store, Images: images, Surrounding: 1}
		composite, err := c.Compose("a.png")
		if err != nil {
			t.Fatal(err)
		}
		if composite.Slots[5] != "" {
			t.Errorf("slot 5 = %q, want blank", composite.Slots[5])
		}
		if got := rgbaAt(composite.Image, 600, 300); got != white {
			t.Errorf("missing neighbour pixel = %v, want white", got)
		}
	})

	t.Run("missing focal file", func(t *testing.T) {
		images := testImages()
		delete(images, "/maps/a.png")
		c := &Compositor{Store: store, Images: images, Surrounding: 1}
		if _, err := c.Compose("a.png"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want not exist", err)
		}
	})

	t.Run("crowded radius warns", func(t *testing.T) {
		c := &Compositor{Store: store, Images: testImages(), Surrounding: 4, MaxSize: 512}
		composite, err := c.Compose("a.png")
		if err != nil {
			t.Fatal(err)
		}
		if len(composite.Warnings) != 1 || composite.Warnings[0] != crowdedWarning {
			t.Errorf("warnings = %v", composite.Warnings)
		}
		if b := composite.Image.Bounds(); b.Dx() != 512 || b.Dy() != 512 {
			t.Errorf("composite should be shrunk to 512, got %dx%d", b.Dx(), b.Dy())
		}
	})

	t.Run("neighbours share the parent and the first row at an origin wins", func(t *testing.T) {
		store := normalizeTestTable(t, `image_id,image_path,parent_id,pixel_bounds,label
a.png,/maps/a.png,P1,"(0, 0, 256, 256)",
b.png,/maps/b.png,P2,"(256, 0, 512, 256)",
c.png,/maps/c.png,P1,"(0, 256, 256, 512)",
e.png,/maps/e.png,P1,"(0, 256, 256, 512)",
`)
		images := testImages()
		images["/maps/e.png"] = solidImage(256, 256, focalColor)
		c := &Compositor{Store: store, Images: images, Surrounding: 1}
		composite, err := c.Compose("a.png")
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"", "", "", "", "a.png", "", "", "c.png", ""}
		for i := range want {
			if composite.Slots[i] != want[i] {
				t.Errorf("slot %d = %q, want %q", i, composite.Slots[i], want[i])
			}
		}
		if got := rgbaAt(composite.Image, 600, 300); got != white {
			t.Errorf("tile of another parent was drawn: %v", got)
		}
	})

	t.Run("unknown row", func(t *testing.T) {
		c := &Compositor{Store: store, Images: testImages(), Surrounding: 1}
		if _, err := c.Compose("nope.png"); err == nil {
			t.Error("expected an error for an unknown row")
		}
	})
}

func TestLighten(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{200, 200, 200, 255})
	img.SetNRGBA(2, 0, color.NRGBA{255, 255, 255, 255})
	img.SetNRGBA(3, 0, color.NRGBA{0, 0, 0, 128})
	got := lighten(img)
	for x, want := range []color.NRGBA{
		{102, 102, 102, 255},
		{222, 222, 222, 255},
		{255, 255, 255, 255},
		{102, 102, 102, 128},
	} {
		if px := got.NRGBAAt(x, 0); px != want {
			t.Errorf("pixel %d = %v, want %v", x, px, want)
		}
	}

	t.Run("premultiplied input stays valid", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(0, 0, 1, 1))
		src.SetRGBA(0, 0, color.RGBA{0, 0, 0, 128})
		r, g, b, a := lighten(src).At(0, 0).RGBA()
		if r > a || g > a || b > a {
			t.Errorf("lightened pixel has colour above alpha: %d %d %d %d", r, g, b, a)
		}
		if px := lighten(src).NRGBAAt(0, 0); px.R != 102 || px.A != 128 {
			t.Errorf("lightened pixel = %v, want {102 102 102 128}", px)
		}
	})
}

func TestContainSize(t *testing.T) {
	tests := []struct {
		width, height, size int
		wantW, wantH        int
	}{
		{512, 256, 256, 256, 128},
		{256, 512, 256, 128, 256},
		{100, 100, 50, 50, 50},
		{300, 200, 600, 600, 400},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d in %d", tt.width, tt.height, tt.size), func(t *testing.T) {
			w, h := containSize(tt.width, tt.height, tt.size)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("containSize() = %d, %d, want %d, %d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFitForDisplay(t *testing.T) {
	img := solidImage(400, 200, focalColor)
	if got := fitForDisplay(img, 0, 0); got != image.Image(img) {
		t.Error("without limits the image should be returned as is")
	}
	if b := fitForDisplay(img, 0, 100).Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("max size: %dx%d", b.Dx(), b.Dy())
	}
	if b := fitForDisplay(img, 800, 100).Bounds(); b.Dx() != 800 || b.Dy() != 400 {
		t.Errorf("resize to wins over max size: %dx%d", b.Dx(), b.Dy())
	}
}
