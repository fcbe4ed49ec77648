package vision

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Box: найденный объект в нормированных координатах
type Box struct {
	ClassIndex int
	Score      float32
	CX, CY     float64
	W, H       float64
}

// labelsPath: путь файла разметки, как его кладёт yolov5: <dir>/labels/<stem>.txt
func labelsPath(dir, imagePath string) string {
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "labels", stem+".txt")
}

// writeLabels пишет разметку построчно "<class> <cx> <cy> <w> <h>"
func writeLabels(path string, boxes []Box) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create labels dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create labels file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, b := range boxes {
		fmt.Fprintf(w, "%d %s %s %s %s\n",
			b.ClassIndex,
			formatNorm(b.CX), formatNorm(b.CY), formatNorm(b.W), formatNorm(b.H))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write labels file: %w", err)
	}
	return f.Close()
}

func formatNorm(v float64) string {
	return strconv.FormatFloat(clamp01(v), 'f', 6, 64)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
