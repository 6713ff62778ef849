package message

import (
	"bytes"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/scope"
)

type trackingReader struct {
	io.Reader
	closes int
}

func (r *trackingReader) Close() error {
	r.closes++
	return nil
}

func newTracking(s string) *trackingReader {
	return &trackingReader{Reader: strings.NewReader(s)}
}

func TestFromString(t *testing.T) {
	m := FromString("hello")
	if m.IsBinary() || m.IsNull() || !m.IsRepeatable() {
		t.Errorf("unexpected flags for text message")
	}
	for i := 0; i < 2; i++ {
		s, err := m.AsText()
		if err != nil || s != "hello" {
			t.Fatalf("read %d: got %q, %v", i, s, err)
		}
	}
	b, err := m.AsBytes()
	if err != nil || string(b) != "hello" {
		t.Errorf("AsBytes: got %q, %v", b, err)
	}
	if m.Size() != 5 {
		t.Errorf("expected size 5, got %d", m.Size())
	}
}

func TestNull(t *testing.T) {
	m := FromBytes(nil)
	if !m.IsNull() {
		t.Fatal("nil bytes should yield a null message")
	}
	s, err := m.AsText()
	if err != nil || s != "" {
		t.Errorf("expected empty text, got %q, %v", s, err)
	}
	if FromReader(nil).IsNull() != true {
		t.Error("nil reader should yield a null message")
	}
}

func TestFromReader_MaterializeOnce(t *testing.T) {
	r := newTracking("streamed")
	m := FromReader(r)
	if m.IsRepeatable() {
		t.Error("stream message should not be repeatable")
	}

	s, err := m.AsText()
	if err != nil || s != "streamed" {
		t.Fatalf("first read: %q, %v", s, err)
	}
	s, err = m.AsText()
	if err != nil || s != "streamed" {
		t.Fatalf("cached read: %q, %v", s, err)
	}
	b, err := m.AsBytes()
	if err != nil || string(b) != "streamed" {
		t.Fatalf("bytes after text: %q, %v", b, err)
	}
	if r.closes != 1 {
		t.Errorf("expected stream closed once after materialization, got %d", r.closes)
	}
	if !m.IsRepeatable() {
		t.Error("materialized message should be repeatable")
	}
}

func TestFromReader_SecondRawAccessFails(t *testing.T) {
	m := FromReader(newTracking("abc"))
	r, err := m.AsReader()
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.ReadAll(r)

	if _, err := m.AsReader(); !stderrors.Is(err, ErrConsumed) {
		t.Errorf("expected ErrConsumed, got %v", err)
	}
	if _, err := m.AsText(); !stderrors.Is(err, ErrConsumed) {
		t.Errorf("expected ErrConsumed after raw access, got %v", err)
	}
}

func TestPreserve(t *testing.T) {
	m := FromReader(newTracking("keep"))
	if err := m.Preserve(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		r, err := m.AsReader()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		b, _ := io.ReadAll(r)
		if string(b) != "keep" {
			t.Errorf("read %d: got %q", i, b)
		}
	}
}

func TestClose(t *testing.T) {
	r := newTracking("x")
	m := FromReader(r)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if r.closes != 1 {
		t.Errorf("expected one close on the stream, got %d", r.closes)
	}
	if _, err := m.AsText(); !stderrors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := m.AsBytes(); !errors.HasCode(err, errors.ErrCodeResource) {
		t.Errorf("expected RESOURCE_ERROR, got %v", err)
	}
	if _, err := m.AsReader(); !stderrors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCharsetDecoding(t *testing.T) {
	// "café" in ISO-8859-1
	latin1 := []byte{'c', 'a', 'f', 0xe9}
	m := FromBytes(latin1, WithCharset("iso-8859-1"))
	s, err := m.AsText()
	if err != nil || s != "café" {
		t.Errorf("expected café, got %q, %v", s, err)
	}

	bom := append([]byte{0xef, 0xbb, 0xbf}, []byte("x")...)
	s, err = FromBytes(bom).AsText()
	if err != nil || s != "x" {
		t.Errorf("expected BOM to be stripped, got %q, %v", s, err)
	}

	_, err = FromBytes([]byte("a"), WithCharset("no-such-charset")).AsText()
	if !errors.HasCode(err, errors.ErrCodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

func TestCharsetEncoding(t *testing.T) {
	m := FromString("café", WithCharset("iso-8859-1"))
	b, err := m.AsBytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{'c', 'a', 'f', 0xe9}) {
		t.Errorf("unexpected encoding %v", b)
	}
}

func TestContextOptions(t *testing.T) {
	m := FromString("<a/>", WithMimeType(MimeTextXML), WithHeader("origin", "test"))
	c := m.Context()
	if c.MimeType != MimeTextXML || c.Header("origin") != "test" {
		t.Errorf("unexpected context %+v", c)
	}
	c.Headers["origin"] = "changed"
	if m.Context().Header("origin") != "test" {
		t.Error("Context must return a copy")
	}
	if FromReader(strings.NewReader("abc")).Size() != SizeUnknown {
		t.Error("stream without declared size should report SizeUnknown")
	}
}

func TestScopeTeardownClosesMessage(t *testing.T) {
	sc := scope.New()
	kept := FromString("kept")
	moved := FromString("moved")
	if err := kept.ScheduleCloseOn(sc, "test"); err != nil {
		t.Fatal(err)
	}
	_ = moved.ScheduleCloseOn(sc, "test")
	if !moved.IsScheduledOn(sc) {
		t.Fatal("expected moved to be scheduled")
	}

	other := scope.New()
	moved.UnscheduleFrom(sc)
	_ = moved.ScheduleCloseOn(other, "result")

	if err := sc.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := kept.AsText(); !stderrors.Is(err, ErrClosed) {
		t.Errorf("expected kept to be closed, got %v", err)
	}
	if s, err := moved.AsText(); err != nil || s != "moved" {
		t.Errorf("moved should survive teardown of the first scope: %q, %v", s, err)
	}
	_ = other.Close()
	if !moved.IsClosed() {
		t.Error("moved should be closed by its new scope")
	}
}

func TestScheduleCloseOn_SingleOwner(t *testing.T) {
	a, b := scope.New(), scope.New()
	m := FromString("payload")
	if err := m.ScheduleCloseOn(a, "first"); err != nil {
		t.Fatal(err)
	}
	if err := m.ScheduleCloseOn(b, "second"); err != nil {
		t.Fatal(err)
	}
	if m.IsScheduledOn(a) || !m.IsScheduledOn(b) || m.Owner() != b {
		t.Fatal("expected ownership to move to the second scope")
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if s, err := m.AsText(); err != nil || s != "payload" {
		t.Errorf("expected message to outlive the previous scope: %q, %v", s, err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if !m.IsClosed() || m.Owner() != nil {
		t.Error("expected owning scope to close the message")
	}
}

func TestConcurrentReads(t *testing.T) {
	m := FromReader(newTracking(strings.Repeat("z", 4096)))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.AsText()
			if err != nil || len(s) != 4096 {
				t.Errorf("concurrent read: len=%d err=%v", len(s), err)
			}
		}()
	}
	wg.Wait()
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(WithMimeType(MimeTextXML))
	_, _ = b.WriteString("<a>")
	_, _ = b.Write([]byte("1"))
	_, _ = b.WriteString("</a>")
	m := b.Build()
	s, _ := m.AsText()
	if s != "<a>1</a>" {
		t.Errorf("unexpected text %q", s)
	}
	if m.Context().MimeType != MimeTextXML {
		t.Error("expected builder options to carry over")
	}
}
