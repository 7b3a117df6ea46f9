package dnsaddr

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// resolvConfPath 系统 DNS 配置
const resolvConfPath = "/etc/resolv.conf"

// FallbackServer resolv.conf 不可用时使用的服务器
const FallbackServer = "1.1.1.1:53"

// TXTLookup TXT 记录查询
type TXTLookup interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// dnsClient 基于 miekg/dns 的 TXT 查询
type dnsClient struct {
	servers []string
	udp     *dns.Client
	tcp     *dns.Client
}

// newDNSClient 创建查询客户端
//
// servers 为空时读取 resolv.conf，仍为空则使用 FallbackServer。
func newDNSClient(servers []string, timeout time.Duration) *dnsClient {
	if len(servers) == 0 {
		servers = systemServers()
	}
	if len(servers) == 0 {
		servers = []string{FallbackServer}
	}
	return &dnsClient{
		servers: servers,
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
	}
}

// systemServers 读取系统 DNS 服务器
func systemServers() []string {
	cfg, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		out = append(out, net.JoinHostPort(s, cfg.Port))
	}
	return out
}

// LookupTXT 依次尝试各服务器，返回第一个有效应答
func (c *dnsClient) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if len(c.servers) == 0 {
		return nil, ErrNoServers
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range c.servers {
		in, _, err := c.udp.ExchangeContext(ctx, msg, server)
		if err == nil && in.Truncated {
			in, _, err = c.tcp.ExchangeContext(ctx, msg, server)
		}
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		switch in.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return nil, ErrNoRecordsFound
		default:
			lastErr = fmt.Errorf("%s: rcode %s", server, dns.RcodeToString[in.Rcode])
			continue
		}

		var records []string
		for _, rr := range in.Answer {
			if txt, ok := rr.(*dns.TXT); ok {
				records = append(records, strings.Join(txt.Txt, ""))
			}
		}
		return records, nil
	}
	return nil, fmt.Errorf("lookup %s: %w", name, lastErr)
}
