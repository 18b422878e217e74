package report

import (
	"context"
	"fmt"
	"io"
	"os"

	"movie-pipeline/internal/model"
	"movie-pipeline/pkg/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// ObjectPutter is the part of *minio.Client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ArchiveConfig locates the object store bucket.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// NewMinioClient connects to the object store and creates the bucket if needed.
func NewMinioClient(ctx context.Context, cfg ArchiveConfig) (*minio.Client, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return cli, nil
}

// Archiver uploads exported files under <prefix>/<run id>/<file>.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	out    *utils.OutputManager
	log    logrus.FieldLogger
}

// NewArchiver uploads to bucket through client.
func NewArchiver(client ObjectPutter, bucket, prefix string, log logrus.FieldLogger) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix, out: utils.NewOutputManager(""), log: log}
}

// Archive uploads every successful export and returns one result per upload.
func (a *Archiver) Archive(ctx context.Context, runID string, exports []model.ExportResult) ([]model.ExportResult, error) {
	var results []model.ExportResult
	for _, exp := range exports {
		if !exp.Success {
			continue
		}
		key := a.out.ObjectKey(a.prefix, runID, exp.Path)
		result := model.ExportResult{Type: "archive", Path: key, View: exp.View, Timestamp: exp.Timestamp}

		if err := a.put(ctx, runID, key, exp.Path); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			a.log.WithError(err).WithField("key", key).Error("Archive upload failed")
			return results, fmt.Errorf("archive %s: %w", exp.Path, err)
		}
		result.Success = true
		result.RecordCount = exp.RecordCount
		results = append(results, result)
		a.log.WithFields(logrus.Fields{"bucket": a.bucket, "key": key}).Info("Report archived")
	}
	return results, nil
}

func (a *Archiver) put(ctx context.Context, runID, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, a.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType:  a.out.ContentType(file),
		UserMetadata: map[string]string{"run": runID},
	})
	return err
}
