package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Бэкенды очереди, хранилища итогов и картинок
const (
	QueueSQS      = "sqs"
	QueueRabbitMQ = "rabbitmq"

	ResultsDynamoDB = "dynamodb"
	ResultsRedis    = "redis"

	BlobS3 = "s3"
	BlobFS = "fs"

	EngineExec = "exec"
	EngineGoCV = "gocv"
)

type Config struct {
	Telegram  Telegram
	AWS       AWS
	Queue     Queue
	Results   Results
	Blob      Blob
	Notify    Notify
	Inference Inference
	Worker    Worker
	Log       Log

	HTTPAddr    string
	MetricsAddr string
}

type Telegram struct {
	Token    string
	AppURL   string // пусто: long polling вместо вебхука
	CertPath string
	Mode     string
}

type AWS struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type Queue struct {
	Backend      string
	SQSURL       string
	SQSWait      int32
	RabbitURL    string
	RabbitQueue  string
	PollInterval time.Duration
}

type Results struct {
	Backend     string
	DynamoTable string
	RedisURL    string
	RedisTTL    time.Duration
}

type Blob struct {
	Backend string
	Bucket  string
	Dir     string
}

type Notify struct {
	URL         string
	InsecureTLS bool
	Timeout     time.Duration
}

type Inference struct {
	Engine     string
	Command    string
	Weights    string
	Data       string
	Model      string
	LabelsFile string
	Timeout    time.Duration
}

type Worker struct {
	WorkDir     string
	Concurrency int
}

type Log struct {
	Level  string
	Format string
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8443")
	v.SetDefault("bot_mode", "detection")
	v.SetDefault("aws_region", "eu-north-1")
	v.SetDefault("queue_backend", QueueSQS)
	v.SetDefault("sqs_wait_seconds", 5)
	v.SetDefault("rabbitmq_queue", "predictions")
	v.SetDefault("queue_poll_interval", "1s")
	v.SetDefault("result_backend", ResultsDynamoDB)
	v.SetDefault("redis_ttl", "0s")
	v.SetDefault("blob_backend", BlobS3)
	v.SetDefault("blob_dir", "data/blobs")
	v.SetDefault("notify_timeout", "10s")
	v.SetDefault("notify_insecure_tls", false)
	v.SetDefault("inference_engine", EngineExec)
	v.SetDefault("yolo_command", "python yolov5/detect.py")
	v.SetDefault("yolo_weights", "yolov5s.pt")
	v.SetDefault("labels_file", "data/coco128.yaml")
	v.SetDefault("inference_timeout", "0s")
	v.SetDefault("work_dir", "work")
	v.SetDefault("worker_concurrency", 1)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Telegram: Telegram{
			Token:    v.GetString("telegram_token"),
			AppURL:   v.GetString("telegram_app_url"),
			CertPath: v.GetString("telegram_cert"),
			Mode:     strings.ToLower(v.GetString("bot_mode")),
		},
		AWS: AWS{
			Region:          v.GetString("aws_region"),
			Endpoint:        v.GetString("aws_endpoint"),
			AccessKeyID:     v.GetString("aws_access_key_id"),
			SecretAccessKey: v.GetString("aws_secret_access_key"),
		},
		Queue: Queue{
			Backend:      strings.ToLower(v.GetString("queue_backend")),
			SQSURL:       v.GetString("sqs_queue_url"),
			SQSWait:      v.GetInt32("sqs_wait_seconds"),
			RabbitURL:    v.GetString("rabbitmq_url"),
			RabbitQueue:  v.GetString("rabbitmq_queue"),
			PollInterval: v.GetDuration("queue_poll_interval"),
		},
		Results: Results{
			Backend:     strings.ToLower(v.GetString("result_backend")),
			DynamoTable: v.GetString("dynamo_tbl"),
			RedisURL:    v.GetString("redis_url"),
			RedisTTL:    v.GetDuration("redis_ttl"),
		},
		Blob: Blob{
			Backend: strings.ToLower(v.GetString("blob_backend")),
			Bucket:  v.GetString("bucket_name"),
			Dir:     v.GetString("blob_dir"),
		},
		Notify: Notify{
			URL:         v.GetString("notify_url"),
			InsecureTLS: v.GetBool("notify_insecure_tls"),
			Timeout:     v.GetDuration("notify_timeout"),
		},
		Inference: Inference{
			Engine:     strings.ToLower(v.GetString("inference_engine")),
			Command:    v.GetString("yolo_command"),
			Weights:    v.GetString("yolo_weights"),
			Data:       v.GetString("yolo_data"),
			Model:      v.GetString("yolo_model"),
			LabelsFile: v.GetString("labels_file"),
			Timeout:    v.GetDuration("inference_timeout"),
		},
		Worker: Worker{
			WorkDir:     v.GetString("work_dir"),
			Concurrency: v.GetInt("worker_concurrency"),
		},
		Log: Log{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
		HTTPAddr:    v.GetString("http_addr"),
		MetricsAddr: v.GetString("metrics_addr"),
	}
}

// ValidateWorker проверяет настройки воркера
func (c *Config) ValidateWorker() error {
	var errs []error

	errs = append(errs, c.validateBlob(), c.validateResults())

	switch c.Queue.Backend {
	case QueueSQS:
		if c.Queue.SQSURL == "" {
			errs = append(errs, errors.New("SQS_QUEUE_URL is required"))
		}
	case QueueRabbitMQ:
		if c.Queue.RabbitURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown QUEUE_BACKEND %q", c.Queue.Backend))
	}

	if c.Notify.URL == "" {
		errs = append(errs, errors.New("NOTIFY_URL is required"))
	}

	switch c.Inference.Engine {
	case EngineExec:
		if strings.TrimSpace(c.Inference.Command) == "" {
			errs = append(errs, errors.New("YOLO_COMMAND is required"))
		}
	case EngineGoCV:
		if c.Inference.Model == "" {
			errs = append(errs, errors.New("YOLO_MODEL is required for gocv engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown INFERENCE_ENGINE %q", c.Inference.Engine))
	}

	if c.Inference.LabelsFile == "" {
		errs = append(errs, errors.New("LABELS_FILE is required"))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateBot проверяет настройки шлюза
func (c *Config) ValidateBot() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("TELEGRAM_TOKEN is required"))
	}
	switch c.Telegram.Mode {
	case "detection":
		errs = append(errs, c.validateBlob(), c.validateResults())
		if c.Queue.Backend == QueueSQS && c.Queue.SQSURL == "" {
			errs = append(errs, errors.New("SQS_QUEUE_URL is required"))
		}
		if c.Queue.Backend == QueueRabbitMQ && c.Queue.RabbitURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required"))
		}
	case "echo":
	default:
		errs = append(errs, fmt.Errorf("unknown BOT_MODE %q", c.Telegram.Mode))
	}
	return errors.Join(errs...)
}

func (c *Config) validateBlob() error {
	switch c.Blob.Backend {
	case BlobS3:
		if c.Blob.Bucket == "" {
			return errors.New("BUCKET_NAME is required")
		}
	case BlobFS:
		if c.Blob.Dir == "" {
			return errors.New("BLOB_DIR is required")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}
	return nil
}

func (c *Config) validateResults() error {
	switch c.Results.Backend {
	case ResultsDynamoDB:
		if c.Results.DynamoTable == "" {
			return errors.New("DYNAMO_TBL is required")
		}
	case ResultsRedis:
		if c.Results.RedisURL == "" {
			return errors.New("REDIS_URL is required")
		}
	default:
		return fmt.Errorf("unknown RESULT_BACKEND %q", c.Results.Backend)
	}
	return nil
}
