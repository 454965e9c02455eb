package manual

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

func findByFilename(manifests []entity.SourceManifest, filename string) (entity.SourceManifest, bool) {
	for _, m := range manifests {
		if m.Filename == filename {
			return m, true
		}
	}
	return entity.SourceManifest{}, false
}

// findByIdentity matches brand, model and language exactly.
func findByIdentity(manifests []entity.SourceManifest, meta entity.ManualMetadata) (entity.SourceManifest, bool) {
	for _, m := range manifests {
		if m.Brand == meta.Brand && m.Model == meta.Model && m.Language == meta.Language {
			return m, true
		}
	}
	return entity.SourceManifest{}, false
}

// saveFile writes an upload into the upload folder and returns its path
func (uc *ManualUsecase) saveFile(name string, content []byte) (string, error) {
	if err := os.MkdirAll(uc.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(uc.uploadDir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (uc *ManualUsecase) removeFile(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		ctxzap.Warn(ctx, "failed to remove uploaded file",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

func distinct(manifests []entity.SourceManifest, pick func(entity.SourceManifest) (string, bool)) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, m := range manifests {
		v, ok := pick(m)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func deleteMessage(m entity.SourceManifest) string {
	var details []string
	if m.Brand != entity.UnknownValue {
		details = append(details, "brand: "+m.Brand)
	}
	if m.Model != entity.UnknownValue {
		details = append(details, "model: "+m.Model)
	}
	if len(details) == 0 {
		return fmt.Sprintf("Successfully deleted %s", m.Filename)
	}
	return fmt.Sprintf("Successfully deleted %s (%s)", m.Filename, strings.Join(details, ", "))
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
