package port

import (
	"context"

	"vision-relay/internal/domain/entity"
)

// InferenceEngine интерфейс детектора объектов
type InferenceEngine interface {
	// Predict распознаёт объекты на изображении и складывает артефакты в outputDir
	Predict(ctx context.Context, imagePath, outputDir string) (*entity.Prediction, error)
}
