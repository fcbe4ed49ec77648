package port

import (
	"context"

	"vision-relay/internal/domain/entity"
)

// ResultStore интерфейс хранилища итогов заданий
type ResultStore interface {
	// Put сохраняет итог по job_id; повторная запись перезаписывает
	Put(ctx context.Context, summary *entity.JobSummary) error

	// Get возвращает итог или entity.ErrSummaryNotFound
	Get(ctx context.Context, jobID string) (*entity.JobSummary, error)
}
