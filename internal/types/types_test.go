package types

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestInlineContentReopens(t *testing.T) {
	c := InlineContent("hello")
	for i := 0; i < 2; i++ {
		rc, err := c.Open(context.Background())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		data, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(data) != "hello" {
			t.Errorf("read %q, want %q", data, "hello")
		}
	}
}

func TestContentFunc(t *testing.T) {
	calls := 0
	var c AttachmentContent = ContentFunc(func(ctx context.Context) (io.ReadCloser, error) {
		calls++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return io.NopCloser(strings.NewReader("lazy")), nil
	})
	if calls != 0 {
		t.Fatal("content fetched before Open")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Open(cancelled) error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAttachmentContentNotSerialized(t *testing.T) {
	issue := NormalizedIssue{
		SourceKey:   "P-1",
		Summary:     "s",
		Attachments: []Attachment{{Filename: "a.txt", Content: InlineContent("secret")}},
	}
	data, err := json.Marshal(issue)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("attachment bytes leaked into JSON: %s", data)
	}
	if !strings.Contains(string(data), `"filename":"a.txt"`) {
		t.Errorf("filename missing from JSON: %s", data)
	}
}
