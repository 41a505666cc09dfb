// Package imaging normalizes uploaded avatars: any decodable JPEG or PNG
// becomes a 250×250 PNG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // registers the JPEG decoder
	"image/png"

	"golang.org/x/image/draw"
)

// AvatarSize is the edge length of every stored avatar. The source aspect
// ratio is not preserved.
const AvatarSize = 250

// ErrUndecodable is returned when the bytes are not a JPEG or PNG image.
var ErrUndecodable = errors.New("imaging: unrecognized image data")

// NormalizeAvatar decodes raw, scales it to AvatarSize×AvatarSize and
// returns it PNG-encoded.
func NormalizeAvatar(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, AvatarSize, AvatarSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("imaging: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
