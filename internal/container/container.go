package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"vision-relay/config"
	app "vision-relay/internal/application"
	"vision-relay/internal/domain/port"
	"vision-relay/internal/infrastructure/cloud"
	"vision-relay/internal/infrastructure/metrics"
	"vision-relay/internal/infrastructure/notify"
	"vision-relay/internal/infrastructure/rabbitmq"
	"vision-relay/internal/infrastructure/redis"
	"vision-relay/internal/infrastructure/storage"
	"vision-relay/internal/infrastructure/vision"
)

const redisKeyPrefix = "prediction:"

// Backends: внешние хранилища и очередь, общие для воркера и шлюза
type Backends struct {
	Blobs    port.BlobStore
	Producer port.JobProducer
	Consumer port.JobConsumer
	Results  port.ResultStore

	closers []func() error
}

// Close закрывает соединения в обратном порядке
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// NewBackends подключается к бэкендам, выбранным в конфигурации
func NewBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{}

	var clients *cloud.Clients
	awsClients := func() (*cloud.Clients, error) {
		if clients != nil {
			return clients, nil
		}
		var err error
		clients, err = cloud.NewClients(ctx, cloud.Options{
			Region:          cfg.AWS.Region,
			Endpoint:        cfg.AWS.Endpoint,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		})
		return clients, err
	}

	switch cfg.Blob.Backend {
	case config.BlobS3:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		b.Blobs = cloud.NewS3BlobStore(c.S3, cfg.Blob.Bucket)
	case config.BlobFS:
		fs, err := storage.NewFilesystemBlobStore(cfg.Blob.Dir)
		if err != nil {
			return nil, err
		}
		b.Blobs = fs
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}

	switch cfg.Queue.Backend {
	case config.QueueSQS:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		q := cloud.NewSQSQueue(c.SQS, cfg.Queue.SQSURL, cfg.Queue.SQSWait)
		b.Producer, b.Consumer = q, q
	case config.QueueRabbitMQ:
		wait := time.Duration(cfg.Queue.SQSWait) * time.Second
		q, err := rabbitmq.NewQueue(cfg.Queue.RabbitURL, cfg.Queue.RabbitQueue, wait, cfg.Queue.PollInterval)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Producer, b.Consumer = q, q
		b.closers = append(b.closers, func() error { q.Close(); return nil })
	default:
		b.Close()
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}

	switch cfg.Results.Backend {
	case config.ResultsDynamoDB:
		c, err := awsClients()
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Results = cloud.NewDynamoResultStore(c.DynamoDB, cfg.Results.DynamoTable)
	case config.ResultsRedis:
		client, err := redis.NewClient(ctx, cfg.Results.RedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Results = redis.NewResultStore(client, redisKeyPrefix, cfg.Results.RedisTTL)
		b.closers = append(b.closers, client.Close)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown result backend %q", cfg.Results.Backend)
	}

	return b, nil
}

// NewMemoryBackends: очередь и итоги в памяти, картинки на диске; для запуска одним процессом
func NewMemoryBackends(cfg *config.Config) (*Backends, error) {
	blobs, err := storage.NewFilesystemBlobStore(cfg.Blob.Dir)
	if err != nil {
		return nil, err
	}
	q := storage.NewMemoryQueue(5*time.Minute, time.Duration(cfg.Queue.SQSWait)*time.Second)
	return &Backends{
		Blobs:    blobs,
		Producer: q,
		Consumer: q,
		Results:  storage.NewMemoryResultStore(),
	}, nil
}

// Container собирает сервисы приложения поверх бэкендов
type Container struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Metrics  *metrics.Prometheus
	Backends *Backends
	Sessions *app.SessionService
}

func New(cfg *config.Config, logger *logrus.Logger, backends *Backends) *Container {
	return &Container{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.NewPrometheus(),
		Backends: backends,
		Sessions: app.NewSessionService(storage.NewMemorySessionRepository()),
	}
}

// Engine: движок распознавания и функция его освобождения
type Engine struct {
	port.InferenceEngine
	Close func() error
}

// NewEngine создаёт движок из конфигурации
func (c *Container) NewEngine(labels *app.LabelResolver) (*Engine, error) {
	inf := c.Config.Inference
	switch inf.Engine {
	case config.EngineExec:
		e, err := vision.NewExecEngine(inf.Command, inf.Weights, inf.Data, c.Logger.WithField("engine", "exec"))
		if err != nil {
			return nil, err
		}
		return &Engine{InferenceEngine: e, Close: func() error { return nil }}, nil
	case config.EngineGoCV:
		e, err := vision.NewGoCVEngine(inf.Model, labels.Names())
		if err != nil {
			return nil, err
		}
		return &Engine{InferenceEngine: e, Close: e.Close}, nil
	default:
		return nil, fmt.Errorf("unknown inference engine %q", inf.Engine)
	}
}

// NewHTTPNotifier создаёт уведомитель шлюза по NOTIFY_URL
func (c *Container) NewHTTPNotifier() (port.Notifier, error) {
	return notify.NewHTTPNotifier(notify.Options{
		BaseURL:     c.Config.Notify.URL,
		Timeout:     c.Config.Notify.Timeout,
		InsecureTLS: c.Config.Notify.InsecureTLS,
	})
}

// NewOrchestrator собирает пайплайн; движок возвращается, чтобы его можно было закрыть
func (c *Container) NewOrchestrator(notifier port.Notifier) (*app.Orchestrator, *Engine, error) {
	labels, err := app.LoadLabelResolver(c.Config.Inference.LabelsFile)
	if err != nil {
		return nil, nil, err
	}
	c.Logger.WithField("classes", labels.Len()).Info("label table loaded")

	engine, err := c.NewEngine(labels)
	if err != nil {
		return nil, nil, err
	}

	orch, err := app.NewOrchestrator(app.PipelineDeps{
		Blobs:    c.Backends.Blobs,
		Engine:   engine,
		Results:  c.Backends.Results,
		Notifier: notifier,
		Queue:    c.Backends.Consumer,
		Labels:   labels,
		Metrics:  c.Metrics,
		Logger:   c.Logger,
	}, c.Config.Worker.WorkDir, c.Config.Inference.Timeout)
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	return orch, engine, nil
}

// NewWorkerFactory возвращает конструктор воркеров для пула
func (c *Container) NewWorkerFactory(proc app.JobProcessor) func(i int) *app.Worker {
	return func(i int) *app.Worker {
		return app.NewWorker(c.Backends.Consumer, proc, c.Logger.WithField("worker", i))
	}
}

// NewMessageHandler создаёт обработчик входящих сообщений для режима BOT_MODE
func (c *Container) NewMessageHandler(chat port.ChatClient) (app.MessageHandler, error) {
	return app.NewMessageHandler(
		c.Config.Telegram.Mode,
		chat,
		c.Backends.Blobs,
		c.Backends.Producer,
		c.Sessions,
		c.Logger,
	)
}

// NewResultsService создаёт сервис доставки итогов в чат
func (c *Container) NewResultsService(chat port.ChatClient) *app.ResultsService {
	return app.NewResultsService(c.Backends.Results, c.Backends.Blobs, chat, c.Sessions, c.Logger)
}
