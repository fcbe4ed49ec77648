package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"vision-relay/internal/domain/entity"
)

// ExtractDetections читает файл разметки движка.
// Отсутствие файла означает ноль детекций, а не ошибку.
func ExtractDetections(path string, resolver *LabelResolver) ([]entity.Detection, error) {
	if path == "" {
		return []entity.Detection{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []entity.Detection{}, nil
		}
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	return ParseLabels(f, resolver)
}

// ParseLabels разбирает строки вида "<class> <cx> <cy> <w> <h> [conf]" в порядке файла
func ParseLabels(r io.Reader, resolver *LabelResolver) ([]entity.Detection, error) {
	detections := []entity.Detection{}
	scanner := bufio.NewScanner(r)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		d, err := parseLabelLine(text, resolver)
		if err != nil {
			return nil, fmt.Errorf("labels line %d: %w", line, err)
		}
		detections = append(detections, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	return detections, nil
}

func parseLabelLine(text string, resolver *LabelResolver) (entity.Detection, error) {
	fields := strings.Fields(text)
	// шестое поле: уверенность, если движок запускали с --save-conf
	if len(fields) != 5 && len(fields) != 6 {
		return entity.Detection{}, fmt.Errorf("%w: expected 5 fields, got %d", entity.ErrInvalidGeometry, len(fields))
	}

	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return entity.Detection{}, fmt.Errorf("class index %q: %w", fields[0], err)
	}
	name, err := resolver.Resolve(index)
	if err != nil {
		return entity.Detection{}, err
	}

	var geometry [4]float64
	for i := range geometry {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return entity.Detection{}, fmt.Errorf("%w: %q", entity.ErrInvalidGeometry, fields[i+1])
		}
		geometry[i] = v
	}

	d := entity.Detection{
		ClassName: name,
		CenterX:   geometry[0],
		CenterY:   geometry[1],
		Width:     geometry[2],
		Height:    geometry[3],
	}
	return d, d.Validate()
}
