package dnsaddr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dep2p/go-bootnode/internal/util/logger"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("discovery/dnsaddr")

// 常量定义
const (
	// RecordPrefix TXT 记录前缀
	RecordPrefix = "dnsaddr="

	// DomainPrefix 查询域名前缀
	DomainPrefix = "_dnsaddr."

	// DefaultTimeout 默认单次查询超时
	DefaultTimeout = 10 * time.Second

	// DefaultMaxDepth 默认最大递归深度
	DefaultMaxDepth = 8

	// DefaultCacheTTL 默认缓存 TTL
	DefaultCacheTTL = 5 * time.Minute
)

// Config 解析器配置
type Config struct {
	// Servers DNS 服务器（host:port），为空时读取系统配置
	Servers []string

	// Timeout 单次查询超时
	Timeout time.Duration

	// MaxDepth 最大递归深度
	MaxDepth int

	// CacheTTL 缓存 TTL
	CacheTTL time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:  DefaultTimeout,
		MaxDepth: DefaultMaxDepth,
		CacheTTL: DefaultCacheTTL,
	}
}

// cacheEntry 缓存条目
type cacheEntry struct {
	records   []string
	expiresAt time.Time
}

// Resolver dnsaddr 解析器
type Resolver struct {
	lookup TXTLookup
	config Config

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

// NewResolver 创建使用 miekg/dns 的解析器
func NewResolver(cfg Config) *Resolver {
	return NewResolverWithLookup(cfg, newDNSClient(cfg.Servers, cfg.Timeout))
}

// NewResolverWithLookup 使用指定的 TXT 查询创建解析器
func NewResolverWithLookup(cfg Config, lookup TXTLookup) *Resolver {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Resolver{
		lookup: lookup,
		config: cfg,
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve 展开 /dnsaddr 地址
//
// 非 /dnsaddr 地址原样返回。结果中每个地址都带 /p2p/<id> 后缀。
func (r *Resolver) Resolve(ctx context.Context, maddr types.Multiaddr) ([]types.Multiaddr, error) {
	if !maddr.IsDNSAddr() {
		return []types.Multiaddr{maddr}, nil
	}

	out, err := r.resolve(ctx, maddr, r.config.MaxDepth)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRecordsFound, maddr)
	}
	return out, nil
}

// resolve 递归展开
func (r *Resolver) resolve(ctx context.Context, maddr types.Multiaddr, depth int) ([]types.Multiaddr, error) {
	if depth <= 0 {
		return nil, ErrMaxDepthExceeded
	}

	host, ok := maddr.ValueForProtocol(types.ProtoDNSAddr)
	if !ok {
		return nil, ErrNotDNSAddr
	}
	want, filter := maddr.PeerID()

	records, err := r.records(ctx, host)
	if err != nil {
		return nil, err
	}

	var out []types.Multiaddr
	seen := make(map[types.Multiaddr]bool)
	for _, rec := range records {
		addr, err := ParseRecord(rec)
		if err != nil {
			log.Debug("跳过无效的 dnsaddr 记录", "record", rec, "err", err)
			continue
		}

		var expanded []types.Multiaddr
		if addr.IsDNSAddr() {
			// 嵌套记录继承外层的节点过滤
			if filter {
				if _, has := addr.PeerID(); !has {
					addr = addr.WithPeerID(want)
				}
			}
			expanded, err = r.resolve(ctx, addr, depth-1)
			if err != nil {
				log.Debug("递归解析失败", "addr", addr, "err", err)
				continue
			}
		} else {
			expanded = []types.Multiaddr{addr}
		}

		for _, a := range expanded {
			id, has := a.PeerID()
			if !has || (filter && id != want) {
				continue
			}
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out, nil
}

// records 查询 TXT 记录（带缓存）
func (r *Resolver) records(ctx context.Context, host string) ([]string, error) {
	domain := DomainPrefix + strings.TrimSuffix(host, ".")

	if recs, ok := r.getFromCache(domain); ok {
		return recs, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	recs, err := r.lookup.LookupTXT(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("resolve TXT records for %s: %w", domain, err)
	}
	log.Debug("获取到 dnsaddr 记录", "domain", domain, "records", len(recs))

	r.setCache(domain, recs)
	return recs, nil
}

// timeout 返回单次查询超时
func (r *Resolver) timeout() time.Duration {
	if r.config.Timeout > 0 {
		return r.config.Timeout
	}
	return DefaultTimeout
}

// getFromCache 从缓存获取
func (r *Resolver) getFromCache(domain string) ([]string, bool) {
	if r.config.CacheTTL <= 0 {
		return nil, false
	}
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	entry, ok := r.cache[domain]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return append([]string(nil), entry.records...), true
}

// setCache 写入缓存
func (r *Resolver) setCache(domain string, records []string) {
	if r.config.CacheTTL <= 0 {
		return
	}
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache[domain] = cacheEntry{
		records:   append([]string(nil), records...),
		expiresAt: time.Now().Add(r.config.CacheTTL),
	}
}

// ClearCache 清除缓存
func (r *Resolver) ClearCache() {
	r.cacheMu.Lock()
	r.cache = make(map[string]cacheEntry)
	r.cacheMu.Unlock()
}

// ParseRecord 解析 "dnsaddr=<multiaddr>" 记录
func ParseRecord(record string) (types.Multiaddr, error) {
	if !strings.HasPrefix(record, RecordPrefix) {
		return "", fmt.Errorf("missing %q prefix", RecordPrefix)
	}
	return types.ParseMultiaddr(strings.TrimPrefix(record, RecordPrefix))
}
