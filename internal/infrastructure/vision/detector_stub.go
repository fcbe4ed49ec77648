//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"vision-relay/internal/domain/entity"
)

// GoCVEngine: заглушка для сборки без OpenCV
type GoCVEngine struct {
	InputSize      int
	ScoreThreshold float32
	NMSThreshold   float32
}

// NewGoCVEngine возвращает ошибку, если сборка без тега gocv.
func NewGoCVEngine(modelPath string, names []string) (*GoCVEngine, error) {
	_ = modelPath
	_ = names
	return nil, errors.New("gocv build tag is not enabled")
}

// Predict возвращает ошибку, если сборка без тега gocv.
func (e *GoCVEngine) Predict(ctx context.Context, imagePath, outputDir string) (*entity.Prediction, error) {
	_ = ctx
	_ = imagePath
	_ = outputDir
	return nil, errors.New("gocv build tag is not enabled")
}

// Close ничего не делает.
func (e *GoCVEngine) Close() error {
	return nil
}
