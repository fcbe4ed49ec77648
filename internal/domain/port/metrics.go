package port

import "time"

// PipelineMetrics принимает наблюдения воркера
type PipelineMetrics interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
	JobFinished(outcome string)
}
