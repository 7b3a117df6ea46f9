package kademlia

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bootnode/internal/core/eventbus"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("discovery/kademlia")

// 默认参数
const (
	// DefaultAlpha 并发查询参数
	DefaultAlpha = 3

	// DefaultRequestTimeout 单个请求超时
	DefaultRequestTimeout = 10 * time.Second

	// DefaultQueryTimeout 整个查询超时
	DefaultQueryTimeout = 60 * time.Second

	// MaxMessageSize 消息最大长度
	MaxMessageSize = 64 * 1024
)

// Config DHT 配置
type Config struct {
	BucketSize     int
	Alpha          int
	RequestTimeout time.Duration
	QueryTimeout   time.Duration
	Clock          clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		BucketSize:     DefaultBucketSize,
		Alpha:          DefaultAlpha,
		RequestTimeout: DefaultRequestTimeout,
		QueryTimeout:   DefaultQueryTimeout,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BucketSize <= 0 {
		c.BucketSize = d.BucketSize
	}
	if c.Alpha <= 0 {
		c.Alpha = d.Alpha
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// DHT Kademlia 服务
type DHT struct {
	host    pkgif.Host
	cfg     Config
	table   *RoutingTable
	emitter *eventbus.Emitter

	nextID atomic.Uint64

	mu            sync.Mutex
	bootstrapping bool
	bootstrapID   QueryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建 DHT
func New(host pkgif.Host, cfg Config) *DHT {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &DHT{
		host:    host,
		cfg:     cfg,
		table:   NewRoutingTable(host.ID(), cfg.BucketSize, cfg.Clock),
		emitter: eventbus.NewEmitter(eventbus.DefaultBufSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events 返回 Kademlia 事件流
func (d *DHT) Events() <-chan types.Event {
	return d.emitter.Events()
}

// RoutingTable 返回路由表
func (d *DHT) RoutingTable() *RoutingTable {
	return d.table
}

// Start 以服务端模式注册 FIND_NODE 处理函数
func (d *DHT) Start() {
	d.host.SetStreamHandler(protocolids.Kademlia, d.handleStream)
	log.Debug("kademlia 服务已启动", "k", d.cfg.BucketSize, "alpha", d.cfg.Alpha)
}

// Stop 取消所有查询并关闭事件流
func (d *DHT) Stop() {
	d.host.RemoveStreamHandler(protocolids.Kademlia)
	d.cancel()
	d.wg.Wait()
	d.emitter.Close()
}

func (d *DHT) spawn(fn func()) {
	if d.ctx.Err() != nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

func (d *DHT) emit(ev types.Event) {
	if err := d.emitter.EmitContext(d.ctx, ev); err != nil && d.ctx.Err() == nil {
		log.Debug("事件发射失败", "error", err)
	}
}

func (d *DHT) newQueryID() QueryID {
	return QueryID(d.nextID.Add(1) - 1)
}

// ============================================================================
//                              路由表操作
// ============================================================================

// AddAddress 登记节点地址
//
// 在事件消费方的循环中被调用，路由更新事件异步发出，不在此阻塞。
func (d *DHT) AddAddress(peer types.PeerID, addr types.Multiaddr) RoutingUpdate {
	return d.addAddresses(peer, []types.Multiaddr{addr.WithoutPeerID()})
}

func (d *DHT) addAddresses(peer types.PeerID, addrs []types.Multiaddr) RoutingUpdate {
	u := d.table.Update(peer, addrs)
	if u != Added && u != Updated {
		return u
	}

	entry, ok := d.table.Find(peer)
	if !ok {
		return u
	}
	// Post 不阻塞调用方，且保持同一节点的更新顺序
	d.emitter.Post(RoutingUpdated{
		Peer:      peer,
		Addrs:     entry.Addrs,
		IsNewPeer: u == Added,
		Bucket:    d.table.bucketIndex(entry.Key),
	})
	return u
}

// ============================================================================
//                              查询
// ============================================================================

// Bootstrap 启动一次引导查询
//
// 路由表为空时返回 ErrNoKnownPeers；已有引导在进行时返回其 ID 与 ErrBootstrapInProgress。
func (d *DHT) Bootstrap() (QueryID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bootstrapping {
		return d.bootstrapID, ErrBootstrapInProgress
	}
	if d.table.Size() == 0 {
		return 0, ErrNoKnownPeers
	}
	if d.ctx.Err() != nil {
		return 0, ErrClosed
	}

	id := d.newQueryID()
	d.bootstrapping = true
	d.bootstrapID = id
	d.spawn(func() { d.runBootstrap(id) })
	return id, nil
}

// runBootstrap 自身查找后逐个刷新非空桶
func (d *DHT) runBootstrap(id QueryID) {
	defer func() {
		d.mu.Lock()
		d.bootstrapping = false
		d.mu.Unlock()
	}()

	local := d.host.ID()
	_, err := d.lookup(d.ctx, local.Bytes())
	if err != nil {
		d.emit(OutboundQueryProgressed{
			ID:     id,
			Result: BootstrapResult{Peer: local, Err: err},
			Step:   ProgressStep{Count: 1, Last: true},
		})
		return
	}

	// 超过 maxRefreshCPL 的桶由自身查找覆盖
	var buckets []int
	for _, b := range d.table.NonEmptyBuckets() {
		if b <= maxRefreshCPL {
			buckets = append(buckets, b)
		}
	}
	d.emit(OutboundQueryProgressed{
		ID:     id,
		Result: BootstrapResult{Peer: local, NumRemaining: len(buckets)},
		Step:   ProgressStep{Count: 1, Last: len(buckets) == 0},
	})

	localKey := KeyForPeer(local)
	for i, b := range buckets {
		found, err := d.lookup(d.ctx, randomPeerKeyWithCPL(localKey, b))

		res := BootstrapResult{NumRemaining: len(buckets) - i - 1, Err: err}
		if len(found) > 0 {
			res.Peer = found[0].Peer
		}
		d.emit(OutboundQueryProgressed{
			ID:     id,
			Result: res,
			Step:   ProgressStep{Count: i + 2, Last: i == len(buckets)-1},
		})
		if d.ctx.Err() != nil {
			return
		}
	}
}

// GetClosestPeers 异步查找离 key 最近的节点
func (d *DHT) GetClosestPeers(key []byte) QueryID {
	id := d.newQueryID()
	d.spawn(func() {
		found, err := d.lookup(d.ctx, key)
		peers := make([]types.PeerID, len(found))
		for i, e := range found {
			peers[i] = e.Peer
		}
		d.emit(OutboundQueryProgressed{
			ID:     id,
			Result: GetClosestPeersResult{Key: key, Peers: peers, Err: err},
			Step:   ProgressStep{Count: 1, Last: true},
		})
	})
	return id
}

// findNode 向 entry 发送 FIND_NODE 请求
//
// key 为原始查找键，对端以 sha256(key) 定位。
func (d *DHT) findNode(ctx context.Context, e Entry, key []byte) ([]PeerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	if err := d.host.Connect(ctx, e.Peer, e.Addrs); err != nil {
		return nil, err
	}
	st, _, err := d.host.NewStream(ctx, e.Peer, protocolids.Kademlia)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = st.SetDeadline(dl)
	}

	if err := wire.WriteProto(st, &Message{Type: MessageFindNode, Key: key}); err != nil {
		st.Reset()
		return nil, err
	}
	var resp Message
	if err := wire.ReadProto(st, MaxMessageSize, &resp); err != nil {
		st.Reset()
		return nil, err
	}
	return resp.CloserPeers, nil
}

// ============================================================================
//                              服务端
// ============================================================================

// handleStream 回应 FIND_NODE 请求
func (d *DHT) handleStream(st pkgif.Stream, conn pkgif.Connection) {
	defer st.Close()
	_ = st.SetDeadline(time.Now().Add(d.cfg.RequestTimeout))

	peer := conn.RemotePeer()
	var req Message
	if err := wire.ReadProto(st, MaxMessageSize, &req); err != nil {
		log.Debug("读取请求失败", "peer", peer.ShortString(), "error", err)
		st.Reset()
		return
	}
	if err := req.validate(); err != nil {
		log.Debug("无效请求", "peer", peer.ShortString(), "type", req.Type)
		st.Reset()
		return
	}

	target := KeyForBytes(req.Key)
	resp := Message{Type: MessageFindNode}
	for _, e := range d.table.NearestPeers(target, d.cfg.BucketSize+1) {
		if e.Peer == peer {
			continue
		}
		if len(resp.CloserPeers) == d.cfg.BucketSize {
			break
		}
		conn := NotConnected
		if d.host.IsConnected(e.Peer) {
			conn = Connected
		}
		resp.CloserPeers = append(resp.CloserPeers, PeerInfo{ID: e.Peer, Addrs: e.Addrs, Connection: conn})
	}

	if err := wire.WriteProto(st, &resp); err != nil {
		log.Debug("发送响应失败", "peer", peer.ShortString(), "error", err)
		st.Reset()
		return
	}
	d.emit(InboundRequest{Peer: peer, Request: req.Type})
}
