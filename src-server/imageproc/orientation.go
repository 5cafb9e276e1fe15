package imageproc

import (
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

const ORIENTATION_NORMAL = 1

// EXIF orientation tag -> counter-clockwise rotation in degrees.
// Mirrored orientations (2, 4, 5, 7) are left alone.
var orientationAngles = map[int]float64{
	3: 180,
	6: -90,
	8: 90,
}

// RotationFor returns the counter-clockwise angle that makes an image with
// the given EXIF orientation display upright.
func RotationFor(orientation int) (angle float64, ok bool) {
	angle, ok = orientationAngles[orientation]
	return angle, ok
}

// ReadOrientation returns the EXIF orientation tag, ORIENTATION_NORMAL when
// the payload carries no readable EXIF.
func ReadOrientation(r io.Reader) int {
	// a partially broken EXIF block still returns the tags read so far
	x, _ := exif.Decode(r)
	if x == nil {
		return ORIENTATION_NORMAL
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return ORIENTATION_NORMAL
	}
	orientation, err := tag.Int(0)
	if err != nil || orientation < 1 || orientation > 8 {
		return ORIENTATION_NORMAL
	}
	return orientation
}
