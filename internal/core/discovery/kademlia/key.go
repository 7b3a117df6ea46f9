package kademlia

import (
	"crypto/rand"
	"math/bits"

	sha256 "github.com/minio/sha256-simd"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// KeySize 键空间位数
const KeySize = 256

// Key Kademlia 键空间中的位置
type Key [32]byte

// KeyForPeer 返回节点在键空间中的位置
func KeyForPeer(p types.PeerID) Key {
	return sha256.Sum256(p.Bytes())
}

// KeyForBytes 返回任意键在键空间中的位置
func KeyForBytes(b []byte) Key {
	return sha256.Sum256(b)
}

// Distance 返回 XOR 距离
func (k Key) Distance(other Key) Key {
	var d Key
	for i := range k {
		d[i] = k[i] ^ other[i]
	}
	return d
}

// CommonPrefixLen 返回共同前缀位数
func (k Key) CommonPrefixLen(other Key) int {
	for i := range k {
		if x := k[i] ^ other[i]; x != 0 {
			return i*8 + bits.LeadingZeros8(x)
		}
	}
	return KeySize
}

// Less 距离比较
func (k Key) Less(other Key) bool {
	for i := range k {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return false
}

// closer 判断 a 是否比 b 更接近 target
func closer(a, b, target Key) bool {
	return a.Distance(target).Less(b.Distance(target))
}

// maxRefreshCPL 刷新桶时随机键的最大共同前缀位数
const maxRefreshCPL = 15

// randomPeerKeyWithCPL 生成随机 PeerID 形式的查找键
//
// 键在键空间中的位置 sha256(key) 与 local 的共同前缀恰为 cpl 位。对端自行对键做哈希，
// 只能随机试探，期望尝试 2^(cpl+1) 次，cpl 超过 maxRefreshCPL 时按其截断。
func randomPeerKeyWithCPL(local Key, cpl int) []byte {
	if cpl > maxRefreshCPL {
		cpl = maxRefreshCPL
	}
	digest := make([]byte, 32)
	for {
		_, _ = rand.Read(digest)
		key := types.NewMultihash(types.MhSha256, digest)
		if KeyForBytes(key).CommonPrefixLen(local) == cpl {
			return key
		}
	}
}
