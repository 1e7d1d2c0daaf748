package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/backend"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/metrics"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

// Uploader stores a rendered export and returns a time-limited download URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Delegate asks the backend to produce the export itself.
type Delegate interface {
	RequestExport(ctx context.Context, req backend.ExportRequest) (string, error)
}

type Auditor interface {
	Record(ctx context.Context, entry *model.AuditLog) error
}

// S3Config configures the bucket exports are published to. An empty bucket
// disables uploads.
type S3Config struct {
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	PathStyle       bool          `mapstructure:"path_style"`
	Prefix          string        `mapstructure:"prefix"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

// S3Store uploads exports to S3 or an S3-compatible endpoint such as MinIO.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	expiry  time.Duration
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		expiry:  expiry,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key = s.prefix + key
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) { po.Expires = s.expiry })
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return out.URL, nil
}

// Service renders exports for direct download and publishes them as links.
type Service struct {
	uploader Uploader
	delegate Delegate
	auditor  Auditor
	clock    query.Clock
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewService wires the export service. uploader may be nil, in which case
// links are produced by the backend.
func NewService(uploader Uploader, delegate Delegate, auditor Auditor, clock query.Clock, m *metrics.Metrics, log *logger.Logger) *Service {
	if clock == nil {
		clock = query.SystemClock
	}
	if m == nil {
		m = metrics.Nop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{uploader: uploader, delegate: delegate, auditor: auditor, clock: clock, metrics: m, log: log}
}

// Request describes one export of a list view.
type Request struct {
	Entity  string
	Format  Format
	Filters interface{}
	Sort    query.Sort
	Table   Table
}

// Render produces the file for direct download.
func (s *Service) Render(ctx context.Context, actor model.Actor, req Request) (Artifact, error) {
	art, err := Render(req.Table, req.Format, s.clock.Now())
	if err != nil {
		return Artifact{}, err
	}
	s.metrics.Exports.WithLabelValues(req.Entity, string(req.Format)).Inc()
	s.audit(ctx, actor, req, "download", len(req.Table.Rows))
	return art, nil
}

// Link returns a download URL. With an uploader configured the file is
// rendered here and uploaded; otherwise the backend renders it.
func (s *Service) Link(ctx context.Context, actor model.Actor, req Request) (string, error) {
	var (
		url string
		err error
	)
	if s.uploader != nil {
		var art Artifact
		art, err = Render(req.Table, req.Format, s.clock.Now())
		if err != nil {
			return "", err
		}
		key := fmt.Sprintf("%s/%s-%s", req.Entity, uuid.NewString(), art.FileName)
		url, err = s.uploader.Upload(ctx, key, art.ContentType, art.Data)
	} else {
		url, err = s.delegate.RequestExport(ctx, backend.ExportRequest{
			Entity:  req.Entity,
			Format:  string(req.Format),
			Filters: req.Filters,
			Sort:    req.Sort,
		})
	}
	if err != nil {
		s.log.Error(err, "failed to publish export", "entity", req.Entity, "format", string(req.Format))
		return "", err
	}
	s.metrics.Exports.WithLabelValues(req.Entity, string(req.Format)).Inc()
	s.audit(ctx, actor, req, "link", len(req.Table.Rows))
	return url, nil
}

func (s *Service) audit(ctx context.Context, actor model.Actor, req Request, mode string, rows int) {
	if s.auditor == nil {
		return
	}
	info := httputil.ClientInfoFromContext(ctx)
	meta, _ := json.Marshal(map[string]interface{}{"format": req.Format, "mode": mode, "rows": rows})
	entry := &model.AuditLog{
		ID:         uuid.New(),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     model.AuditActionExport,
		EntityType: req.Entity,
		Metadata:   meta,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		RequestID:  httputil.RequestIDFromContext(ctx),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.log.Error(err, "failed to record export audit log")
	}
}
