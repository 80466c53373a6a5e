package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local 以本地目录作为暂存后端，适合单机部署与测试.
type Local struct {
	root string
}

// NewLocal 创建本地暂存，目录不存在时创建.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("staging dir is required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve staging dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	return &Local{root: abs}, nil
}

// Put 先写临时文件再改名，读者不会看到写了一半的副本.
func (l *Local) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	dst, err := l.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create staging dir for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".staging-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write staged %s: %w", key, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staged %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("commit staged %s: %w", key, err)
	}

	return nil
}

// Open 打开暂存副本.
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}

		return nil, fmt.Errorf("open staged %s: %w", key, err)
	}

	return f, nil
}

// Delete 删除暂存副本.
func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete staged %s: %w", key, err)
	}

	return nil
}

// HealthCheck 检查根目录可写.
func (l *Local) HealthCheck(_ context.Context) error {
	f, err := os.CreateTemp(l.root, ".health-*")
	if err != nil {
		return fmt.Errorf("staging dir not writable: %w", err)
	}

	name := f.Name()
	_ = f.Close()

	return os.Remove(name)
}

// path 把暂存键映射到根目录下，拒绝越界的键.
func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid staging key %q", key)
	}

	return filepath.Join(l.root, clean), nil
}

// ctxReader 在每次读取前检查 ctx，取消后中断拷贝.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
