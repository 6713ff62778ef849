package s3sender

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/kbukum/iterpipe/logger"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/scope"
	"github.com/kbukum/iterpipe/sender"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Sender writes every block to one S3 object. Elements are buffered by
// SendInBlock and uploaded by CloseBlock.
type Sender struct {
	client s3API
	cfg    Config
	log    *logger.Logger
}

// NewClient creates an S3 client from cfg.
func NewClient(ctx context.Context, cfg *Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3sender: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// New creates a Sender uploading through client.
func New(client s3API, cfg Config, log *logger.Logger) (*Sender, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get(logger.ComponentSender)
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &Sender{client: client, cfg: cfg, log: log}, nil
}

// Dispatcher tags s as a block-enabled sender. The block handle is safe
// for concurrent sends.
func (s *Sender) Dispatcher(opts ...sender.Option) *sender.Dispatcher {
	return sender.AsBlockEnabled(s, append([]sender.Option{sender.WithName("s3"), sender.WithConcurrentHandle()}, opts...)...)
}

type block struct {
	key string

	mu  sync.Mutex
	buf bytes.Buffer
	n   int
}

// OpenBlock starts a new object.
func (s *Sender) OpenBlock(_ context.Context, _ *scope.Scope) (sender.Handle, error) {
	key := uuid.New().String() + s.cfg.Extension
	if s.cfg.Prefix != "" {
		key = s.cfg.Prefix + "/" + key
	}
	return &block{key: key}, nil
}

// SendInBlock appends msg to the object of h. The result names the object
// and the position of the element in it.
func (s *Sender) SendInBlock(_ context.Context, h sender.Handle, msg *message.Message, _ *scope.Scope) (*message.Message, error) {
	b, ok := h.(*block)
	if !ok {
		return nil, fmt.Errorf("s3sender: unexpected handle %T", h)
	}
	data, err := msg.AsBytes()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(data)
	b.buf.WriteString(s.cfg.Separator)
	b.n++
	return message.FromString(s.location(b.key) + "#" + strconv.Itoa(b.n)), nil
}

// CloseBlock uploads the buffered elements. An empty block uploads nothing.
func (s *Sender) CloseBlock(ctx context.Context, h sender.Handle, _ *scope.Scope) error {
	b, ok := h.(*block)
	if !ok {
		return fmt.Errorf("s3sender: unexpected handle %T", h)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.n == 0 {
		return nil
	}

	size := int64(b.buf.Len())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(b.key),
		Body:          bytes.NewReader(b.buf.Bytes()),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(s.cfg.ContentType),
	})
	if err != nil {
		return fmt.Errorf("put s3 object key=%q: %w", b.key, err)
	}
	s.log.Debug("block uploaded", logger.Fields(
		"key", b.key,
		logger.FieldCount, b.n,
		"bytes", size,
	))
	return nil
}

func (s *Sender) location(key string) string {
	return "s3://" + s.cfg.Bucket + "/" + key
}
