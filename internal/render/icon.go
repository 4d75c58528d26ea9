package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/png" // icon assets are PNG
	"io/fs"
	"os"

	xdraw "golang.org/x/image/draw"
)

// ErrAssetMissing means neither the icon nor its fallback could be loaded.
var ErrAssetMissing = errors.New("render: asset missing")

// loadIcon decodes the first readable image of primary and fallback and
// scales it to a size x size square on a white background.
func loadIcon(primary, fallback string, size int) (*image.Gray, string, error) {
	var errs []error
	for _, path := range []string{primary, fallback} {
		if path == "" {
			continue
		}
		src, err := decodeImage(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return scaleIcon(src, size), path, nil
	}
	return nil, "", fmt.Errorf("%w: icon %q, fallback %q: %w", ErrAssetMissing, primary, fallback, errors.Join(errs...))
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: not found", path)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

func scaleIcon(src image.Image, size int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
