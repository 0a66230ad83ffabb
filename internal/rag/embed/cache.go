package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

// CachedProvider is a read-through Redis cache in front of another provider.
// Keys are content hashes, so identical chunks across re-ingests hit the
// cache instead of the remote embedder. Cache failures degrade to the inner
// provider; they never fail the request.
type CachedProvider struct {
	log   *logger.Logger
	inner Provider
	rdb   *goredis.Client
	ttl   time.Duration
}

func NewCachedProvider(log *logger.Logger, inner Provider, addr string, ttl time.Duration) (*CachedProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if inner == nil {
		return nil, fmt.Errorf("inner provider required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &CachedProvider{
		log:   log.With("service", "EmbedCache"),
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
	}, nil
}

func (p *CachedProvider) Name() string { return p.inner.Name() }
func (p *CachedProvider) Dim() int     { return p.inner.Dim() }

func (p *CachedProvider) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}

func (p *CachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = p.cacheKey(text)
	}

	cached, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		p.log.Warn("Embed cache read failed; bypassing", "error", err)
		return p.inner.Embed(ctx, texts)
	}
	for i, raw := range cached {
		s, ok := raw.(string)
		if !ok {
			missing = append(missing, i)
			continue
		}
		vec := decodeVector(s)
		if vec == nil {
			missing = append(missing, i)
			continue
		}
		out[i] = vec
	}

	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for i, idx := range missing {
		pending[i] = texts[idx]
	}
	fresh, err := p.inner.Embed(ctx, pending)
	if err != nil {
		return nil, err
	}

	pipe := p.rdb.Pipeline()
	for i, idx := range missing {
		out[idx] = fresh[i]
		pipe.Set(ctx, keys[idx], encodeVector(fresh[i]), p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn("Embed cache write failed", "error", err)
	}
	return out, nil
}

func (p *CachedProvider) cacheKey(text string) string {
	digest := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embed:%s:%d:%s", p.inner.Name(), p.inner.Dim(), hex.EncodeToString(digest[:16]))
}

func encodeVector(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return string(buf)
}

func decodeVector(raw string) []float32 {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(raw[i*4 : i*4+4])))
	}
	return vec
}
