// Package staging 保存提交文件的暂存副本，worker 按暂存键重新读取.
//
// 暂存键形如 <prefix>/<yyyy>/<mm>/<dd>/<ulid>-<name>，与后端无关.
package staging

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/yeisme/ingestvault/pkg/configs"
	s3c "github.com/yeisme/ingestvault/pkg/internal/storage/s3"
)

// ErrNotFound 暂存副本不存在.
var ErrNotFound = errors.New("staged object not found")

// Stager 暂存后端.
type Stager interface {
	// Put 写入暂存副本，size 未知时传 -1.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// Open 打开暂存副本，不存在时返回 ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除暂存副本，不存在视为成功.
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(crand.Reader, 0)
)

// New 依据配置创建暂存后端；s3 类型需要传入已初始化的 S3 客户端.
func New(cfg *configs.StagingConfig, s3 *s3c.Client) (Stager, error) {
	switch cfg.Type {
	case configs.StagingLocal, "":
		return NewLocal(cfg.Dir)
	case configs.StagingS3:
		if s3 == nil {
			return nil, fmt.Errorf("staging type s3 requires an s3 client")
		}

		return NewS3(s3, s3.Bucket()), nil
	default:
		return nil, fmt.Errorf("unsupported staging type: %s", cfg.Type)
	}
}

// NewKey 生成暂存键.
func NewKey(prefix, name string, now time.Time) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()

	return path.Join(strings.Trim(prefix, "/"), now.UTC().Format("2006/01/02"), id.String()+"-"+safeName(name))
}

// safeName 只保留文件名本身，替换路径分隔符与空白.
func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "upload"
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '\t':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, name)
}
