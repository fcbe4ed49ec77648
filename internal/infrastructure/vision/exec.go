package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

const runName = "run"

// ExecEngine запускает внешний yolov5 detect.py.
// Скрипт сам рисует рамки и пишет labels/<stem>.txt только если что-то нашёл.
type ExecEngine struct {
	command []string
	weights string
	data    string
	log     logrus.FieldLogger
}

// NewExecEngine создаёт движок; command: например "python yolov5/detect.py"
func NewExecEngine(command, weights, data string, logger logrus.FieldLogger) (*ExecEngine, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("inference command is empty")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ExecEngine{command: parts, weights: weights, data: data, log: logger}, nil
}

// Predict запускает модель на одном изображении
func (e *ExecEngine) Predict(ctx context.Context, imagePath, outputDir string) (*entity.Prediction, error) {
	args := append(e.command[1:len(e.command):len(e.command)], e.args(imagePath, outputDir)...)
	cmd := exec.CommandContext(ctx, e.command[0], args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w: %s", e.command[0], err, tail(out, 512))
	}
	e.log.WithField("image", imagePath).Debug(string(tail(out, 512)))

	return collectOutputs(filepath.Join(outputDir, runName), imagePath)
}

func (e *ExecEngine) args(imagePath, outputDir string) []string {
	args := []string{"--source", imagePath, "--project", outputDir, "--name", runName, "--save-txt", "--exist-ok"}
	if e.weights != "" {
		args = append(args, "--weights", e.weights)
	}
	if e.data != "" {
		args = append(args, "--data", e.data)
	}
	return args
}

// collectOutputs находит артефакты прогона; отсутствие файла разметки: ноль детекций
func collectOutputs(runDir, imagePath string) (*entity.Prediction, error) {
	annotated := filepath.Join(runDir, filepath.Base(imagePath))
	if _, err := os.Stat(annotated); err != nil {
		return nil, fmt.Errorf("annotated image not produced: %w", err)
	}

	pred := &entity.Prediction{AnnotatedImagePath: annotated}
	labels := labelsPath(runDir, imagePath)
	if _, err := os.Stat(labels); err == nil {
		pred.LabelsPath = labels
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat labels: %w", err)
	}
	return pred, nil
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}

var _ port.InferenceEngine = (*ExecEngine)(nil)
