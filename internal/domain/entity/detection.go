package entity

import (
	"fmt"
	"math"
)

// Detection: один найденный объект.
// Геометрия нормирована на размеры изображения и всегда задаётся целиком.
type Detection struct {
	ClassName string  // название класса
	CenterX   float64 // X центра рамки
	CenterY   float64 // Y центра рамки
	Width     float64 // ширина рамки
	Height    float64 // высота рамки
}

// Validate проверяет, что все координаты лежат в [0,1]; NaN отклоняется
func (d Detection) Validate() error {
	fields := [...]struct {
		name  string
		value float64
	}{
		{"cx", d.CenterX},
		{"cy", d.CenterY},
		{"width", d.Width},
		{"height", d.Height},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidGeometry, f.name, f.value)
		}
	}
	return nil
}
