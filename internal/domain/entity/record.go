package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SummaryRecord: формат хранения JobSummary в DynamoDB и Redis.
// Имена полей совпадают с теми, что читает шлюз.
type SummaryRecord struct {
	PredictionID     string        `json:"prediction_id" dynamodbav:"prediction_id"`
	OriginalImgPath  string        `json:"original_img_path" dynamodbav:"original_img_path"`
	PredictedImgPath string        `json:"predicted_img_path" dynamodbav:"predicted_img_path"`
	Labels           []LabelRecord `json:"labels" dynamodbav:"labels"`
	ChatID           string        `json:"chat_id" dynamodbav:"chat_id"`
	Time             string        `json:"time" dynamodbav:"time"`
}

// LabelRecord: детекция в строковом виде
type LabelRecord struct {
	Class  string `json:"class" dynamodbav:"class"`
	CX     string `json:"cx" dynamodbav:"cx"`
	CY     string `json:"cy" dynamodbav:"cy"`
	Width  string `json:"width" dynamodbav:"width"`
	Height string `json:"height" dynamodbav:"height"`
}

// ToRecord переводит итог в формат хранения
func (s *JobSummary) ToRecord() SummaryRecord {
	labels := make([]LabelRecord, 0, len(s.Detections))
	for _, d := range s.Detections {
		labels = append(labels, LabelRecord{
			Class:  d.ClassName,
			CX:     formatCoord(d.CenterX),
			CY:     formatCoord(d.CenterY),
			Width:  formatCoord(d.Width),
			Height: formatCoord(d.Height),
		})
	}

	return SummaryRecord{
		PredictionID:     s.JobID,
		OriginalImgPath:  s.OriginalImageRef,
		PredictedImgPath: s.AnnotatedImageRef,
		Labels:           labels,
		ChatID:           s.CorrelationID,
		Time:             FormatEpoch(s.CompletedAt),
	}
}

// ToSummary восстанавливает итог из формата хранения
func (r SummaryRecord) ToSummary() (*JobSummary, error) {
	detections := make([]Detection, 0, len(r.Labels))
	for i, l := range r.Labels {
		d, err := l.toDetection()
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", i, err)
		}
		detections = append(detections, d)
	}

	completedAt, err := ParseEpoch(r.Time)
	if err != nil {
		return nil, err
	}

	return &JobSummary{
		JobID:             r.PredictionID,
		CorrelationID:     r.ChatID,
		OriginalImageRef:  r.OriginalImgPath,
		AnnotatedImageRef: r.PredictedImgPath,
		Detections:        detections,
		CompletedAt:       completedAt,
	}, nil
}

func (l LabelRecord) toDetection() (Detection, error) {
	raw := [4]string{l.CX, l.CY, l.Width, l.Height}
	var values [4]float64
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Detection{}, fmt.Errorf("%w: %q", ErrInvalidGeometry, s)
		}
		values[i] = v
	}

	d := Detection{
		ClassName: l.Class,
		CenterX:   values[0],
		CenterY:   values[1],
		Width:     values[2],
		Height:    values[3],
	}
	return d, d.Validate()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatEpoch кодирует время как секунды Unix с дробной частью, например "1700000000.123456"
func FormatEpoch(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// ParseEpoch разбирает строку, записанную FormatEpoch (или просто целые секунды)
func ParseEpoch(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	secPart, fracPart, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}

	var nsec int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		fracPart += strings.Repeat("0", 9-len(fracPart))
		nsec, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
	}

	return time.Unix(sec, nsec).UTC(), nil
}
