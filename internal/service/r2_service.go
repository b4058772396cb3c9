package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	cfg "github.com/maheshrc27/postflow/configs"
)

// StorageService stores media bytes and returns a public URL for them.
type StorageService interface {
	Store(ctx context.Context, data []byte, contentType, key string) (string, error)
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type r2Service struct {
	client    objectPutter
	bucket    string
	publicURL string
}

func NewR2Service(c cfg.Config) (StorageService, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})

	return &r2Service{
		client:    client,
		bucket:    c.R2.BucketName,
		publicURL: strings.TrimRight(c.R2.PublicURL, "/"),
	}, nil
}

// Store uploads under key, replacing any existing object, so a re-run of the
// same item lands on the same object.
func (r *r2Service) Store(ctx context.Context, data []byte, contentType, key string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return "", stageError(StageUpload, ErrUploadFailed, fmt.Errorf("put %s: %w", key, err))
	}

	return fmt.Sprintf("%s/%s", r.publicURL, key), nil
}

// ObjectKey derives the storage key for an item's media:
// automation/{userID}/{scheduledAt ms}-{itemID}{ext}.
func ObjectKey(userID int64, scheduledAt time.Time, itemID, contentType string) string {
	ext := ""
	if e := mimeExtension(contentType); e != "" {
		ext = "." + e
	}
	return fmt.Sprintf("automation/%d/%d-%s%s", userID, scheduledAt.UnixMilli(), itemID, ext)
}

// mimeExtension looks the content type up in filetype's registry, the same one
// used to sniff acquired media. Unknown types get no extension.
func mimeExtension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !filetype.IsMIMESupported(mediaType) {
		return ""
	}
	var exts []string
	for ext, t := range filetype.Types {
		if t.MIME.Value == mediaType {
			exts = append(exts, ext)
		}
	}
	if len(exts) == 0 {
		return ""
	}
	sort.Strings(exts)
	return exts[0]
}
