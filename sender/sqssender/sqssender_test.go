package sqssender

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	ierrors "github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/iterator"
	"github.com/kbukum/iterpipe/logger"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/pipe"
	"github.com/kbukum/iterpipe/scope"
	"github.com/kbukum/iterpipe/sender"
)

type fakeSQSAPI struct {
	mu     sync.Mutex
	inputs []*sqs.SendMessageInput
	failOn string
}

func (f *fakeSQSAPI) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if aws.ToString(in.MessageBody) == f.failOn {
		return nil, errors.New("queue does not exist")
	}
	f.inputs = append(f.inputs, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("id-" + aws.ToString(in.MessageBody))}, nil
}

func TestConfig_Validate(t *testing.T) {
	if _, err := New(&fakeSQSAPI{}, Config{}, logger.Nop()); !ierrors.HasCode(err, ierrors.ErrCodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR for missing queue, got %v", err)
	}
	if _, err := New(&fakeSQSAPI{}, Config{QueueURL: "q", DelaySeconds: 1000}, logger.Nop()); err == nil {
		t.Error("expected error for delay above 900 seconds")
	}
}

func TestSender_Send(t *testing.T) {
	f := &fakeSQSAPI{}
	s, err := New(f, Config{QueueURL: "https://sqs/queue.fifo", MessageGroupID: "g"}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := sender.ContextWithItem(context.Background(), 4)
	out, err := s.Send(ctx, message.FromString("hello"), scope.New())
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := out.AsText(); id != "id-hello" {
		t.Errorf("expected message id result, got %q", id)
	}
	in := f.inputs[0]
	if aws.ToString(in.QueueUrl) != "https://sqs/queue.fifo" || aws.ToString(in.MessageGroupId) != "g" || in.MessageDeduplicationId == nil {
		t.Errorf("unexpected input %+v", in)
	}
	if v := in.MessageAttributes[AttrItem]; aws.ToString(v.StringValue) != "4" {
		t.Errorf("expected item attribute 4, got %v", aws.ToString(v.StringValue))
	}
}

func TestSender_InPipe(t *testing.T) {
	f := &fakeSQSAPI{failOn: "7"}
	s, err := New(f, Config{QueueURL: "q"}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	cfg := pipe.DefaultConfig()
	cfg.Concatenate = true
	cfg.ElementWrapping = pipe.ElementWrapping{Suffix: ","}
	p, err := pipe.New(iterator.Lines(), s.Dispatcher(), cfg, pipe.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), message.FromString("1\n2\n3"), scope.New())
	if err != nil {
		t.Fatal(err)
	}
	if out, _ := res.Message.AsText(); out != "id-1,id-2,id-3," {
		t.Errorf("unexpected output %q", out)
	}
	for i, in := range f.inputs {
		if aws.ToString(in.MessageAttributes[AttrItem].StringValue) != strconv.Itoa(i+1) {
			t.Errorf("message %d carries wrong item attribute", i+1)
		}
	}

	_, err = p.Run(context.Background(), message.FromString("5\n6\n7\n8"), scope.New())
	if idx, _ := ierrors.ItemIndex(err); idx != 3 {
		t.Errorf("expected failure at item 3, got %v", err)
	}
}
