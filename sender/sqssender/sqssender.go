package sqssender

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/kbukum/iterpipe/logger"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/scope"
	"github.com/kbukum/iterpipe/sender"
)

// AttrItem is the message attribute carrying the 1-based item index.
const AttrItem = "iterpipe-item"

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Sender publishes every element as one SQS message and returns the
// message id as the result.
type Sender struct {
	client      sqsAPI
	cfg         Config
	queueURLPtr *string
	log         *logger.Logger
}

// NewClient creates an SQS client from cfg.
func NewClient(ctx context.Context, cfg *Config) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("sqssender: load aws config: %w", err)
	}
	var opts []func(*sqs.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	return sqs.NewFromConfig(awsCfg, opts...), nil
}

// New creates a Sender publishing through client.
func New(client sqsAPI, cfg Config, log *logger.Logger) (*Sender, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get(logger.ComponentSender)
	}
	s := &Sender{client: client, cfg: cfg, log: log}
	s.queueURLPtr = &s.cfg.QueueURL
	return s, nil
}

// Dispatcher tags s as a simple sender.
func (s *Sender) Dispatcher(opts ...sender.Option) *sender.Dispatcher {
	return sender.AsSimple(s, append([]sender.Option{sender.WithName("sqs")}, opts...)...)
}

// Send publishes msg.
func (s *Sender) Send(ctx context.Context, msg *message.Message, _ *scope.Scope) (*message.Message, error) {
	body, err := msg.AsText()
	if err != nil {
		return nil, err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    s.queueURLPtr,
		MessageBody: aws.String(body),
	}
	if s.cfg.DelaySeconds > 0 {
		in.DelaySeconds = s.cfg.DelaySeconds
	}
	if s.cfg.MessageGroupID != "" {
		in.MessageGroupId = aws.String(s.cfg.MessageGroupID)
		in.MessageDeduplicationId = aws.String(uuid.New().String())
	}
	if idx, ok := sender.ItemFromContext(ctx); ok {
		in.MessageAttributes = map[string]sqstypes.MessageAttributeValue{
			AttrItem: {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(idx)),
			},
		}
	}

	out, err := s.client.SendMessage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("send sqs message: %w", err)
	}
	id := aws.ToString(out.MessageId)
	s.log.Debug("message sent", logger.Fields(logger.FieldMessageID, id))
	return message.FromString(id), nil
}
