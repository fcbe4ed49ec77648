package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// PredictedPrefix: префикс ключей изображений с разметкой, чтобы не затереть исходник
const PredictedPrefix = "predicted/"

// Stage: этап обработки задания
type Stage string

const (
	StageParse   Stage = "parse"
	StageFetch   Stage = "fetch"
	StageInfer   Stage = "infer"
	StageExtract Stage = "extract"
	StageStore   Stage = "store"
	StageNotify  Stage = "notify"
	StageAck     Stage = "ack"
)

// Исходы задания для метрик
const (
	OutcomeAcknowledged = "acknowledged"
	OutcomeFailed       = "failed"
)

// StageError: задание остановилось на этапе Stage
type StageError struct {
	Stage Stage
	JobID string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("job %s: %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PipelineDeps: клиенты, которые собираются один раз при старте и переиспользуются
type PipelineDeps struct {
	Blobs    port.BlobStore
	Engine   port.InferenceEngine
	Results  port.ResultStore
	Notifier port.Notifier
	Queue    port.JobConsumer
	Labels   *LabelResolver
	Metrics  port.PipelineMetrics
	Logger   logrus.FieldLogger
}

// Orchestrator проводит одно сообщение через все этапы:
// fetch → infer → extract → store → notify → ack.
// Любая ошибка до notify оставляет сообщение в очереди, и оно придёт снова
// после таймаута видимости, поэтому все этапы идемпотентны по job_id.
type Orchestrator struct {
	blobs    port.BlobStore
	engine   port.InferenceEngine
	results  port.ResultStore
	notifier port.Notifier
	queue    port.JobConsumer
	labels   *LabelResolver
	metrics  port.PipelineMetrics
	log      logrus.FieldLogger

	workDir      string
	inferTimeout time.Duration
	now          func() time.Time
}

// NewOrchestrator создаёт оркестратор; workDir: локальная директория воркера
func NewOrchestrator(deps PipelineDeps, workDir string, inferTimeout time.Duration) (*Orchestrator, error) {
	switch {
	case deps.Blobs == nil:
		return nil, errors.New("blob store is not configured")
	case deps.Engine == nil:
		return nil, errors.New("inference engine is not configured")
	case deps.Results == nil:
		return nil, errors.New("result store is not configured")
	case deps.Notifier == nil:
		return nil, errors.New("notifier is not configured")
	case deps.Queue == nil:
		return nil, errors.New("queue is not configured")
	case deps.Labels == nil:
		return nil, errors.New("label table is not configured")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Orchestrator{
		blobs:        deps.Blobs,
		engine:       deps.Engine,
		results:      deps.Results,
		notifier:     deps.Notifier,
		queue:        deps.Queue,
		labels:       deps.Labels,
		metrics:      metrics,
		log:          logger,
		workDir:      workDir,
		inferTimeout: inferTimeout,
		now:          time.Now,
	}, nil
}

// Process выполняет задание. Сообщение удаляется из очереди только при успехе всех
// обязательных этапов; ошибка уведомления логируется и не мешает подтверждению.
func (o *Orchestrator) Process(ctx context.Context, msg *entity.JobMessage) (err error) {
	log := o.log.WithField("job_id", msg.ID)
	defer func() {
		if err != nil {
			o.metrics.JobFinished(OutcomeFailed)
			return
		}
		o.metrics.JobFinished(OutcomeAcknowledged)
	}()

	req, err := entity.DecodeJobRequest(msg.Body)
	if err != nil {
		return &StageError{Stage: StageParse, JobID: msg.ID, Err: err}
	}
	log = log.WithFields(logrus.Fields{"image_key": req.ImageKey, "chat_id": req.ChatID})
	log.Info("start processing")

	// у каждого задания своя директория
	jobDir := filepath.Join(o.workDir, safeName(msg.ID))
	defer func() {
		if rmErr := os.RemoveAll(jobDir); rmErr != nil {
			log.WithError(rmErr).Warn("failed to clean job directory")
		}
	}()

	var localPath string
	if err := o.stage(msg.ID, StageFetch, func() (e error) {
		localPath, e = o.fetch(ctx, jobDir, req.ImageKey)
		return e
	}); err != nil {
		return err
	}
	log.WithField("path", localPath).Info("download img completed")

	var prediction *entity.Prediction
	if err := o.stage(msg.ID, StageInfer, func() (e error) {
		prediction, e = o.infer(ctx, localPath, filepath.Join(jobDir, "predict"))
		return e
	}); err != nil {
		return err
	}
	log.Info("inference done")

	var detections []entity.Detection
	if err := o.stage(msg.ID, StageExtract, func() (e error) {
		detections, e = ExtractDetections(prediction.LabelsPath, o.labels)
		return e
	}); err != nil {
		return err
	}
	log.WithField("detections", len(detections)).Info("prediction summary ready")

	summary := &entity.JobSummary{
		JobID:             msg.ID,
		CorrelationID:     req.ChatID,
		OriginalImageRef:  req.ImageKey,
		AnnotatedImageRef: PredictedPrefix + req.ImageKey,
		Detections:        detections,
		CompletedAt:       o.now().UTC(),
	}
	if err := o.stage(msg.ID, StageStore, func() error {
		return o.store(ctx, prediction, summary)
	}); err != nil {
		return err
	}
	log.Info("summary stored")

	if err := o.stage(msg.ID, StageNotify, func() error {
		return o.notifier.Notify(ctx, msg.ID)
	}); err != nil {
		log.WithError(err).Warn("notify failed, summary is stored and can be fetched later")
	}

	if err := o.stage(msg.ID, StageAck, func() error {
		return o.queue.Delete(ctx, msg)
	}); err != nil {
		return err
	}
	log.Info("job acknowledged")

	return nil
}

// stage выполняет этап, пишет метрику и оборачивает ошибку
func (o *Orchestrator) stage(jobID string, stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	o.metrics.ObserveStage(string(stage), time.Since(start), err)
	if err != nil {
		return &StageError{Stage: stage, JobID: jobID, Err: err}
	}
	return nil
}

// fetch скачивает объект в файл, имя которого определяется ключом,
// так что повторное скачивание перезаписывает тот же файл
func (o *Orchestrator) fetch(ctx context.Context, jobDir, key string) (string, error) {
	dir := filepath.Join(jobDir, "original")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	localPath := filepath.Join(dir, safeName(path.Base(key)))

	body, err := o.blobs.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	defer body.Close()

	f, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("write local file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close local file: %w", err)
	}
	return localPath, nil
}

func (o *Orchestrator) infer(ctx context.Context, imagePath, outputDir string) (*entity.Prediction, error) {
	if o.inferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.inferTimeout)
		defer cancel()
	}

	prediction, err := o.engine.Predict(ctx, imagePath, outputDir)
	if err != nil {
		return nil, err
	}
	if prediction == nil || prediction.AnnotatedImagePath == "" {
		return nil, errors.New("engine produced no annotated image")
	}
	return prediction, nil
}

// store загружает картинку с разметкой и пишет итог; оба действия перезаписывают по ключу
func (o *Orchestrator) store(ctx context.Context, prediction *entity.Prediction, summary *entity.JobSummary) error {
	f, err := os.Open(prediction.AnnotatedImagePath)
	if err != nil {
		return fmt.Errorf("open annotated image: %w", err)
	}
	defer f.Close()

	if err := o.blobs.Put(ctx, summary.AnnotatedImageRef, f); err != nil {
		return fmt.Errorf("put %s: %w", summary.AnnotatedImageRef, err)
	}

	// повторная доставка сохраняет время первой записи
	prev, err := o.results.Get(ctx, summary.JobID)
	switch {
	case err == nil:
		if !prev.CompletedAt.IsZero() {
			summary.CompletedAt = prev.CompletedAt
		}
	case !errors.Is(err, entity.ErrSummaryNotFound):
		return fmt.Errorf("get summary: %w", err)
	}

	if err := o.results.Put(ctx, summary); err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

// safeName превращает произвольную строку в одно имя файла
func safeName(s string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

type nopMetrics struct{}

func (nopMetrics) ObserveStage(string, time.Duration, error) {}
func (nopMetrics) JobFinished(string)                        {}
