package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/dep2p/go-bootnode/config"
)

// ============================================================================
//                              命令行参数
// ============================================================================

// flags 命令行参数
//
// 只有显式给出的参数才覆盖配置，set 记录被设置的参数名。
type flags struct {
	joinIPFS    bool
	port        portValue
	secretKey   string
	configFile  string
	envFile     string
	metricsAddr string

	set map[string]bool
}

// portValue 解析为 uint16 的端口参数
type portValue uint16

func (p *portValue) String() string { return fmt.Sprint(uint16(*p)) }

func (p *portValue) Set(s string) error {
	v, err := config.ParsePort(s)
	if err != nil {
		return err
	}
	*p = portValue(v)
	return nil
}

// 长短参数名的对应关系
var aliases = map[string]string{
	"j": "join-ipfs",
	"p": "port",
	"s": "secret-key",
}

func parseFlags(args []string, output io.Writer) (*flags, error) {
	f := &flags{port: portValue(config.DefaultPort), set: make(map[string]bool)}

	fs := flag.NewFlagSet("bootnode", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.BoolVar(&f.joinIPFS, "join-ipfs", false, "加入公共 IPFS 网络")
	fs.BoolVar(&f.joinIPFS, "j", false, "-join-ipfs 的简写")
	fs.Var(&f.port, "port", "监听端口（TCP 与 QUIC 共用）")
	fs.Var(&f.port, "p", "-port 的简写")
	fs.StringVar(&f.secretKey, "secret-key", "", "Ed25519 种子的十六进制编码，或 "+config.RandomSecretKey)
	fs.StringVar(&f.secretKey, "s", "", "-secret-key 的简写")
	fs.StringVar(&f.configFile, "config", "", "JSON 配置文件路径")
	fs.StringVar(&f.envFile, "env-file", "", "环境变量文件路径（默认尝试 ./.env）")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "指标 HTTP 监听地址，设置即启用")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fs.Visit(func(fl *flag.Flag) {
		name := fl.Name
		if long, ok := aliases[name]; ok {
			name = long
		}
		f.set[name] = true
	})
	return f, nil
}

// apply 将显式给出的参数写入配置
func (f *flags) apply(cfg *config.Config) {
	if f.set["join-ipfs"] {
		cfg.JoinIPFS = f.joinIPFS
	}
	if f.set["port"] {
		cfg.Transport.Port = uint16(f.port)
	}
	if f.set["secret-key"] {
		cfg.Identity.SecretKey = f.secretKey
	}
	if f.set["metrics-addr"] && f.metricsAddr != "" {
		cfg.Metrics.Enable = true
		cfg.Metrics.ListenAddr = f.metricsAddr
	}
}
