//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// GoCVEngine запускает YOLOv5, экспортированный в ONNX, через модуль DNN OpenCV
type GoCVEngine struct {
	InputSize      int
	ScoreThreshold float32
	NMSThreshold   float32

	net   gocv.Net
	names []string
	mu    sync.Mutex
}

// NewGoCVEngine загружает модель; names нужны только для подписей на картинке
func NewGoCVEngine(modelPath string, names []string) (*GoCVEngine, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &GoCVEngine{
		InputSize:      640,
		ScoreThreshold: 0.25,
		NMSThreshold:   0.45,
		net:            net,
		names:          names,
	}, nil
}

// Predict распознаёт объекты, рисует рамки и пишет файл разметки
func (e *GoCVEngine) Predict(ctx context.Context, imagePath, outputDir string) (*entity.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return nil, errors.New("failed to decode image")
	}
	defer img.Close()

	boxes, err := e.detect(img)
	if err != nil {
		return nil, err
	}

	runDir := filepath.Join(outputDir, runName)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	e.highlight(&img, boxes)
	annotated := filepath.Join(runDir, filepath.Base(imagePath))
	if ok := gocv.IMWrite(annotated, img); !ok {
		return nil, fmt.Errorf("failed to write %s", annotated)
	}

	pred := &entity.Prediction{AnnotatedImagePath: annotated}
	if len(boxes) > 0 {
		pred.LabelsPath = labelsPath(runDir, imagePath)
		if err := writeLabels(pred.LabelsPath, boxes); err != nil {
			return nil, err
		}
	}
	return pred, nil
}

// detect прогоняет сеть и оставляет лучшие рамки после NMS.
// Выход YOLOv5: [1, N, 5+C]: cx, cy, w, h, objectness, вероятности классов.
func (e *GoCVEngine) detect(img gocv.Mat) ([]Box, error) {
	size := e.InputSize
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	e.mu.Unlock()
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 || dims[2] < 6 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	rows, cols := dims[1], dims[2]

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	xScale := float64(img.Cols()) / float64(size)
	yScale := float64(img.Rows()) / float64(size)

	var (
		candidates []Box
		rects      []image.Rectangle
		scores     []float32
	)
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		objectness := row[4]
		if objectness < e.ScoreThreshold {
			continue
		}

		classIndex, classScore := 0, float32(0)
		for c, s := range row[5:] {
			if s > classScore {
				classIndex, classScore = c, s
			}
		}
		score := objectness * classScore
		if score < e.ScoreThreshold {
			continue
		}

		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		left := int((cx - w/2) * xScale)
		top := int((cy - h/2) * yScale)
		rects = append(rects, image.Rect(left, top, left+int(w*xScale), top+int(h*yScale)))
		scores = append(scores, score)
		candidates = append(candidates, Box{
			ClassIndex: classIndex,
			Score:      score,
			CX:         cx / float64(size),
			CY:         cy / float64(size),
			W:          w / float64(size),
			H:          h / float64(size),
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(rects, scores, e.ScoreThreshold, e.NMSThreshold)
	boxes := make([]Box, 0, len(indices))
	for _, idx := range indices {
		boxes = append(boxes, candidates[idx])
	}
	return boxes, nil
}

// highlight рисует рамки и подписи классов
func (e *GoCVEngine) highlight(img *gocv.Mat, boxes []Box) {
	green := color.RGBA{G: 255, A: 255}
	width, height := float64(img.Cols()), float64(img.Rows())

	for _, b := range boxes {
		left := int((b.CX - b.W/2) * width)
		top := int((b.CY - b.H/2) * height)
		rect := image.Rect(left, top, left+int(b.W*width), top+int(b.H*height))
		gocv.Rectangle(img, rect, green, 2)

		label := fmt.Sprintf("%d %.2f", b.ClassIndex, b.Score)
		if b.ClassIndex < len(e.names) {
			label = fmt.Sprintf("%s %.2f", e.names[b.ClassIndex], b.Score)
		}
		gocv.PutText(img, label, image.Pt(rect.Min.X, maxInt(rect.Min.Y-5, 10)), gocv.FontHersheySimplex, 0.5, green, 1)
	}
}

// Close освобождает сеть
func (e *GoCVEngine) Close() error {
	return e.net.Close()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var _ port.InferenceEngine = (*GoCVEngine)(nil)
