package capture

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handcard/internal/spatial"
)

// DefaultJPEGQuality is used for enrichment snapshots and preview frames.
const DefaultJPEGQuality = 80

// ErrEmptyFrame is returned when encoding a frame without pixels.
var ErrEmptyFrame = errors.New("frame is empty")

// Frame is one camera image plus the scene query that was valid when it was taken.
// Surfaces is nil when the frame carries no spatial query capability.
type Frame struct {
	Mat       *gocv.Mat
	Timestamp time.Time
	Surfaces  spatial.SurfaceQuery
}

// Close releases the frame's pixels. It is safe to call on a frame without a Mat.
func (f Frame) Close() {
	if f.Mat != nil {
		f.Mat.Close()
	}
}

// EncodeJPEG returns the frame as JPEG bytes.
func (f Frame) EncodeJPEG(quality int) ([]byte, error) {
	return EncodeJPEG(f.Mat, quality)
}

// EncodeJPEG encodes mat as JPEG. The returned slice is owned by the caller.
func EncodeJPEG(mat *gocv.Mat, quality int) ([]byte, error) {
	if mat == nil || mat.Empty() {
		return nil, ErrEmptyFrame
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// NativeByteBuffer memory is freed on Close.
	src := buf.GetBytes()
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}
