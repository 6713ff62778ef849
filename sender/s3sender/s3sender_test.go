package s3sender

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	ierrors "github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/iterator"
	"github.com/kbukum/iterpipe/logger"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/pipe"
	"github.com/kbukum/iterpipe/scope"
	"github.com/kbukum/iterpipe/sender"
)

type fakeS3API struct {
	mu     sync.Mutex
	puts   []*s3.PutObjectInput
	bodies []string
	putErr error
}

func (f *fakeS3API) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func newSender(t *testing.T, f *fakeS3API) *Sender {
	t.Helper()
	s, err := New(f, Config{Bucket: "bkt", Prefix: "/out/"}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestConfig_Validate(t *testing.T) {
	if _, err := New(&fakeS3API{}, Config{}, logger.Nop()); !ierrors.HasCode(err, ierrors.ErrCodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR for missing bucket, got %v", err)
	}
	cfg := Config{Bucket: "b"}
	cfg.ApplyDefaults()
	if cfg.Region != DefaultRegion || cfg.Separator != "\n" || cfg.Extension != ".txt" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestSender_Block(t *testing.T) {
	f := &fakeS3API{}
	s := newSender(t, f)
	sc := scope.New()
	ctx := context.Background()

	h, err := s.OpenBlock(ctx, sc)
	if err != nil {
		t.Fatal(err)
	}
	var results []string
	for _, v := range []string{"a", "b"} {
		out, err := s.SendInBlock(ctx, h, message.FromString(v), sc)
		if err != nil {
			t.Fatal(err)
		}
		r, _ := out.AsText()
		results = append(results, r)
	}
	if err := s.CloseBlock(ctx, h, sc); err != nil {
		t.Fatal(err)
	}

	if len(f.puts) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(f.puts))
	}
	key := aws.ToString(f.puts[0].Key)
	if aws.ToString(f.puts[0].Bucket) != "bkt" || !strings.HasPrefix(key, "out/") || !strings.HasSuffix(key, ".txt") {
		t.Errorf("unexpected object bkt=%s key=%s", aws.ToString(f.puts[0].Bucket), key)
	}
	if f.bodies[0] != "a\nb\n" || aws.ToInt64(f.puts[0].ContentLength) != 4 {
		t.Errorf("unexpected body %q", f.bodies[0])
	}
	if results[1] != "s3://bkt/"+key+"#2" {
		t.Errorf("unexpected result %q", results[1])
	}
}

func TestSender_EmptyBlockUploadsNothing(t *testing.T) {
	f := &fakeS3API{}
	s := newSender(t, f)
	h, _ := s.OpenBlock(context.Background(), scope.New())
	if err := s.CloseBlock(context.Background(), h, scope.New()); err != nil || len(f.puts) != 0 {
		t.Errorf("expected no upload, got %d (%v)", len(f.puts), err)
	}
}

func TestSender_UploadFailure(t *testing.T) {
	f := &fakeS3API{putErr: errors.New("access denied")}
	s := newSender(t, f)
	h, _ := s.OpenBlock(context.Background(), scope.New())
	_, _ = s.SendInBlock(context.Background(), h, message.FromString("x"), scope.New())
	if err := s.CloseBlock(context.Background(), h, scope.New()); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("expected upload error, got %v", err)
	}
}

func TestSender_UnexpectedHandle(t *testing.T) {
	s := newSender(t, &fakeS3API{})
	if _, err := s.SendInBlock(context.Background(), "other", message.FromString("x"), scope.New()); err == nil {
		t.Error("expected handle type error")
	}
}

func TestSender_InPipe(t *testing.T) {
	f := &fakeS3API{}
	d := newSender(t, f).Dispatcher()
	if d.Kind() != sender.KindBlockEnabled || !d.ConcurrentHandle() {
		t.Fatalf("unexpected dispatcher %s", d.Kind())
	}

	cfg := pipe.DefaultConfig()
	cfg.BlockSize = 4
	cfg.Parallel = true
	cfg.MaxChildThreads = 3
	cfg.CountOnly = true
	p, err := pipe.New(iterator.Lines(), d, cfg, pipe.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	sc := scope.New()
	defer sc.Close()
	res, err := p.Run(context.Background(), message.FromString("1\n2\n3\n4\n5\n6\n7\n8\n9\n10"), sc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 10 || len(f.puts) != 3 {
		t.Errorf("expected 10 items in 3 objects, got %d items, %d objects", res.Count, len(f.puts))
	}
	lines := 0
	for _, b := range f.bodies {
		lines += strings.Count(b, "\n")
	}
	if lines != 10 {
		t.Errorf("expected 10 uploaded lines, got %d", lines)
	}
}
