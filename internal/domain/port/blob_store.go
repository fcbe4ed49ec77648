package port

import (
	"context"
	"io"
)

// BlobStore интерфейс хранилища бинарных объектов
type BlobStore interface {
	// Get открывает объект по ключу; если его нет: entity.ErrBlobNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put записывает объект, перезаписывая существующий с тем же ключом
	Put(ctx context.Context, key string, body io.Reader) error
}
