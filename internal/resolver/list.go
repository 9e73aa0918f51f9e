package resolver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/ligustah/photofetch/internal/pipeline"
)

// List resolves to a fixed set of URLs read from a file, one per line.
// Blank lines and lines starting with # are skipped. The search term is
// ignored and recorded as metadata only.
type List struct {
	Path string
}

// NewList creates a List resolver reading path.
func NewList(path string) *List {
	return &List{Path: path}
}

// Resolve reads the list. An empty list is a valid zero-task result.
func (l *List) Resolve(ctx context.Context, term string, count int) ([]pipeline.Task, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolver, err)
	}
	defer f.Close()

	return ParseList(ctx, f, term, count)
}

// ParseList reads URLs from r. Count <= 0 means no limit.
func ParseList(ctx context.Context, r io.Reader, term string, count int) ([]pipeline.Task, error) {
	var tasks []pipeline.Task
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResolver, err)
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, resolverError("line %d: invalid url %q", line, raw)
		}

		md := map[string]string{"source": "list"}
		if term != "" {
			md["search"] = term
		}
		tasks = append(tasks, pipeline.Task{URL: raw, Metadata: md})
		if count > 0 && len(tasks) == count {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolver, err)
	}
	return tasks, nil
}
