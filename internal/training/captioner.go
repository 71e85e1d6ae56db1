package training

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Captioner labels one training chunk with a text-to-music description.
type Captioner interface {
	Caption(ctx context.Context, sourceName string, chunkIndex, chunkCount int) (string, error)
}

// StaticCaptioner produces deterministic captions from the source file
// name. It is the fallback when no language model is configured and when a
// remote caption call fails mid-run.
type StaticCaptioner struct{}

var _ Captioner = (*StaticCaptioner)(nil)

// Caption never fails.
func (StaticCaptioner) Caption(_ context.Context, sourceName string, chunkIndex, chunkCount int) (string, error) {
	title := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
	title = strings.NewReplacer("_", " ", "-", " ").Replace(title)
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		title = "untitled track"
	}
	return fmt.Sprintf("Instrumental music, segment %d of %d from %s", chunkIndex+1, chunkCount, title), nil
}
