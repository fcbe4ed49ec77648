package entity

import "time"

// JobSummary: итог выполненного задания, который хранится в хранилище результатов
type JobSummary struct {
	JobID             string
	CorrelationID     string // chat_id запросившего чата
	OriginalImageRef  string // ключ исходного изображения
	AnnotatedImageRef string // ключ изображения с разметкой
	Detections        []Detection
	CompletedAt       time.Time
}

// ClassNames возвращает названия классов в порядке детекций
func (s *JobSummary) ClassNames() []string {
	names := make([]string, 0, len(s.Detections))
	for _, d := range s.Detections {
		names = append(names, d.ClassName)
	}
	return names
}

// Prediction: то, что вернул движок инференса
type Prediction struct {
	AnnotatedImagePath string // локальный путь к изображению с рамками
	LabelsPath         string // файл с разметкой; пустая строка: детекций нет
}
