// Package s3storage зеркалирует JSON артефакты в S3-совместимое хранилище.
//
// Зеркало вторично: локальный артефакт остаётся источником истины,
// ошибка загрузки только логируется вызывающей стороной.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/mastication/pkg/config"
)

// objectAPI — подмножество *minio.Client, которым пользуется Client.
// Позволяет подменять хранилище в тестах.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// Client загружает артефакты в бакет под общим префиксом.
type Client struct {
	api    objectAPI
	bucket string
	prefix string
}

// StoredObject — объект в бакете.
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// New создает клиент по секции archive конфигурации.
func New(cfg config.S3Config) (*Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return newClient(minioClient, cfg.Bucket, cfg.Prefix), nil
}

func newClient(api objectAPI, bucket, prefix string) *Client {
	return &Client{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Key возвращает ключ объекта для пути артефакта относительно output_dir.
//
//	prefix="archive", rel="ideas/2024/01/02/1704189600.json"
//	  → "archive/ideas/2024/01/02/1704189600.json"
func (c *Client) Key(relPath string) string {
	rel := strings.TrimPrefix(path.Clean("/"+relPath), "/")
	if c.prefix == "" {
		return rel
	}
	return c.prefix + "/" + rel
}

// Archive загружает артефакт с content type application/json.
func (c *Client) Archive(ctx context.Context, relPath string, data []byte) error {
	key := c.Key(relPath)

	_, err := c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// List возвращает все архивные объекты под sub (относительно префикса).
func (c *Client) List(ctx context.Context, sub string) ([]StoredObject, error) {
	prefix := c.Key(sub)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []StoredObject
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	for obj := range c.api.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		// Пропускаем саму "папку"
		if obj.Key == prefix {
			continue
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return objects, nil
}
