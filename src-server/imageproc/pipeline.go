// Package imageproc turns an uploaded image into a bounded, upright WebP asset.
package imageproc

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/storage"
	"parish/src-server/utils"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	DEFAULT_MAX_WIDTH  = 1920
	DEFAULT_MAX_HEIGHT = 1920

	// decoded pixel budget, refuses decompression bombs before allocating
	MAX_PIXELS = 80_000_000
)

var supportedMIME = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type Options struct {
	MaxWidth  int
	MaxHeight int
	// 0..100, clamped
	Quality int
	// false skips orientation correction entirely
	ReadExif bool
}

func OptionsFromConfig(config *utils.Config) Options {
	return Options{
		MaxWidth:  config.GetImageMaxWidth(),
		MaxHeight: config.GetImageMaxHeight(),
		Quality:   config.GetWebpQuality(),
		ReadExif:  config.GetImageReadExif(),
	}
}

type Processor struct {
	storage *storage.Manager
	opts    Options
	metrics *utils.Metric
}

// NewProcessor fills zero options with the defaults, metrics may be nil.
func NewProcessor(store *storage.Manager, opts Options, metrics *utils.Metric) *Processor {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DEFAULT_MAX_WIDTH
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = DEFAULT_MAX_HEIGHT
	}
	opts.Quality = max(0, min(100, opts.Quality))
	return &Processor{storage: store, opts: opts, metrics: metrics}
}

func stageErr(stage string, err error) error {
	return &apperr.ProcessingError{Stage: stage, Err: err}
}

// Process validates, decodes, resizes, rotates and re-encodes upload as WebP,
// returning the stored path relative to the storage base directory.
//
// Storage problems come back as *apperr.StorageError, everything else as
// *apperr.ProcessingError wrapping the specific cause.
func (p *Processor) Process(ctx context.Context, upload storage.Upload) (string, error) {
	startTimer := time.Now()

	// #region - upload & sniff
	if !upload.OK() {
		return "", stageErr("upload", &apperr.UploadError{Reason: "upload not ok", Err: upload.Err()})
	}
	src, err := upload.Open()
	if err != nil {
		return "", stageErr("upload", &apperr.UploadError{Reason: "can't open upload", Err: err})
	}
	defer src.Close()

	mime, err := mimetype.DetectReader(src)
	if err != nil {
		return "", stageErr("sniff", &apperr.UploadError{Reason: "can't read upload", Err: err})
	}
	if !isSupported(mime) {
		return "", stageErr("sniff", &apperr.NotAnImageError{MIME: mime.String()})
	}
	// #endregion

	// #region - decode
	img, err := decode(src)
	if err != nil {
		return "", stageErr("decode", err)
	}
	if err := ctx.Err(); err != nil {
		return "", stageErr("decode", err)
	}
	// #endregion

	// #region - resize, orientation, colour mode
	img = imaging.Fit(img, p.opts.MaxWidth, p.opts.MaxHeight, imaging.Lanczos)

	if p.opts.ReadExif {
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return "", stageErr("orientation", err)
		}
		orientation := ReadOrientation(src)
		if angle, ok := RotationFor(orientation); ok {
			img = imaging.Rotate(img, angle, color.Transparent)
			slog.Debug("image rotated", "orientation", orientation, "angle", angle)
		}
	}

	rgba := toTrueColor(img)
	if err := ctx.Err(); err != nil {
		return "", stageErr("resize", err)
	}
	// #endregion

	// #region - encode & store
	rel, err := p.storage.AllocatePath("webp")
	if err != nil {
		return "", err
	}
	if err := p.storage.WriteFile(rel, func(w io.Writer) error {
		// the encoder premultiplies an NRGBA image but libwebp expects straight
		// alpha, so the NRGBA bytes go in as they are
		straight := &image.RGBA{Pix: rgba.Pix, Stride: rgba.Stride, Rect: rgba.Rect}
		if err := webp.Encode(w, straight, &webp.Options{
			Lossless: false,
			Quality:  float32(p.opts.Quality),
		}); err != nil {
			return stageErr("encode", err)
		}
		return nil
	}); err != nil {
		p.storage.Discard(rel)
		return "", err
	}
	// #endregion

	p.metrics.Push(p.metricChan(), float64(time.Since(startTimer).Microseconds()))
	slog.Info("image stored",
		"path", rel,
		"source", upload.Name(),
		"mime", mime.String(),
		"width", rgba.Bounds().Dx(),
		"height", rgba.Bounds().Dy(),
	)
	return rel, nil
}

// isSupported accepts the supported types and their subtypes, an APNG is
// still a PNG.
func isSupported(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if mimetype.EqualsAny(m.String(), supportedMIME...) {
			return true
		}
	}
	return false
}

func (p *Processor) metricChan() chan float64 {
	if p.metrics == nil {
		return nil
	}
	return p.metrics.ImageProcess
}

func decode(src io.ReadSeeker) (image.Image, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, &apperr.DecodeError{Err: err}
	}
	config, _, err := image.DecodeConfig(src)
	if err != nil {
		return nil, &apperr.DecodeError{Err: err}
	}
	if config.Width*config.Height > MAX_PIXELS {
		return nil, &apperr.DecodeError{Err: fmt.Errorf("image is %dx%d, too many pixels", config.Width, config.Height)}
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, &apperr.DecodeError{Err: err}
	}
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, &apperr.DecodeError{Err: err}
	}
	return img, nil
}

// toTrueColor draws palette and other non NRGBA images onto an NRGBA canvas,
// a transparent palette index becomes alpha 0.
func toTrueColor(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	bounds := img.Bounds()
	canvas := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)
	return canvas
}
