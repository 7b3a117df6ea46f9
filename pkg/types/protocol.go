package types

// ProtocolID 协议标识（如 /ipfs/kad/1.0.0）
type ProtocolID string

// String 返回协议字符串
func (p ProtocolID) String() string {
	return string(p)
}

// ProtocolIDs 将字符串列表转换为 ProtocolID 列表
func ProtocolIDs(ss []string) []ProtocolID {
	out := make([]ProtocolID, 0, len(ss))
	for _, s := range ss {
		if s == "" {
			continue
		}
		out = append(out, ProtocolID(s))
	}
	return out
}

// ProtocolStrings 将 ProtocolID 列表转换为字符串列表
func ProtocolStrings(ps []ProtocolID) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// ContainsProtocol 检查列表中是否包含指定协议
func ContainsProtocol(ps []ProtocolID, target ProtocolID) bool {
	for _, p := range ps {
		if p == target {
			return true
		}
	}
	return false
}
