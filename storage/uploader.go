package storage

import (
	"context"
	"io"
)

// UploadResult описывает загруженный объект.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader - абстракция над объектным хранилищем для логотипов турниров.
// Сервисы работают с интерфейсом, чтобы в тестах подставлять заглушку.
type FileUploader interface {
	// Upload кладёт объект в хранилище и возвращает его публичное расположение.
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	// Delete удаляет объект. Отсутствие объекта не считается ошибкой.
	Delete(ctx context.Context, key string) error

	// GetPublicURL строит публичный URL по ключу объекта.
	GetPublicURL(key string) string
}
