package ocr

import (
	"bytes"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const maxEdge = 2048

// preprocess straightens and flattens a phone photo for handwriting
// recognition. Images the decoder rejects are sent unchanged.
func preprocess(data []byte, mime string, logger *zap.Logger) ([]byte, string) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		logger.Debug("image not decodable; sending original", zap.String("mime", mime), zap.Error(err))
		return data, mime
	}
	if b := img.Bounds(); b.Dx() > maxEdge || b.Dy() > maxEdge {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)
	contrast := imaging.AdjustContrast(gray, 20)
	sharp := imaging.Sharpen(contrast, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, sharp, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		logger.Debug("re-encode failed; sending original", zap.Error(err))
		return data, mime
	}
	return buf.Bytes(), "image/jpeg"
}
