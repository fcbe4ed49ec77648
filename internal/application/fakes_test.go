package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"vision-relay/internal/domain/entity"
)

// fakeEngine пишет картинку и файл разметки так же, как yolov5 detect.py
type fakeEngine struct {
	mu       sync.Mutex
	labels   string
	noLabels bool
	err      error
	panicMsg string
	calls    int
}

func (e *fakeEngine) Predict(ctx context.Context, imagePath, outputDir string) (*entity.Prediction, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	if e.err != nil {
		return nil, e.err
	}

	if err := os.MkdirAll(filepath.Join(outputDir, "labels"), 0o755); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}

	annotated := filepath.Join(outputDir, filepath.Base(imagePath))
	if err := os.WriteFile(annotated, append([]byte("annotated:"), data...), 0o644); err != nil {
		return nil, err
	}

	pred := &entity.Prediction{AnnotatedImagePath: annotated}
	if !e.noLabels {
		stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
		pred.LabelsPath = filepath.Join(outputDir, "labels", stem+".txt")
		if err := os.WriteFile(pred.LabelsPath, []byte(e.labels), 0o644); err != nil {
			return nil, err
		}
	}
	return pred, nil
}

type fakeNotifier struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (n *fakeNotifier) Notify(ctx context.Context, jobID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, jobID)
	return n.err
}

func (n *fakeNotifier) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ids...)
}

// failingResultStore не может записать итог
type failingResultStore struct{}

func (failingResultStore) Put(ctx context.Context, summary *entity.JobSummary) error {
	return errors.New("table write failed")
}

func (failingResultStore) Get(ctx context.Context, jobID string) (*entity.JobSummary, error) {
	return nil, entity.ErrSummaryNotFound
}

type sentPhoto struct {
	chatID int64
	name   string
	data   []byte
}

// fakeChat запоминает исходящие сообщения
type fakeChat struct {
	mu      sync.Mutex
	texts   map[int64][]string
	photos  []sentPhoto
	files   map[string]string
	sendErr error
}

func newFakeChat() *fakeChat {
	return &fakeChat{texts: make(map[int64][]string), files: make(map[string]string)}
}

func (c *fakeChat) SendText(chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.texts[chatID] = append(c.texts[chatID], text)
	return nil
}

func (c *fakeChat) SendPhoto(chatID int64, name string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photos = append(c.photos, sentPhoto{chatID: chatID, name: name, data: data})
	return nil
}

func (c *fakeChat) DownloadFile(fileID string) (string, []byte, error) {
	p, ok := c.files[fileID]
	if !ok {
		return "", nil, fmt.Errorf("file %s not found", fileID)
	}
	return p, []byte("jpeg:" + fileID), nil
}

func (c *fakeChat) Texts(chatID int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts[chatID]...)
}
