package app

import (
	"strconv"
	"strings"

	"vision-relay/internal/domain/entity"
)

// ClassCount: количество объектов одного класса
type ClassCount struct {
	ClassName string
	Count     int
}

// CountClasses считает объекты по классам в порядке первого появления
func CountClasses(detections []entity.Detection) []ClassCount {
	counts := []ClassCount{}
	index := make(map[string]int)

	for _, d := range detections {
		if i, ok := index[d.ClassName]; ok {
			counts[i].Count++
			continue
		}
		index[d.ClassName] = len(counts)
		counts = append(counts, ClassCount{ClassName: d.ClassName, Count: 1})
	}
	return counts
}

// FormatSummary строит сводку "Класс: количество" по строке на класс
func FormatSummary(summary *entity.JobSummary) string {
	var b strings.Builder
	for _, c := range CountClasses(summary.Detections) {
		b.WriteString(c.ClassName)
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(c.Count))
		b.WriteByte('\n')
	}
	return b.String()
}
