// Package main 提供引导节点命令行入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/app"
	"github.com/dep2p/go-bootnode/internal/util/logger"
)

var log = logger.Logger("cmd/bootnode")

// defaultEnvFile 未指定 -env-file 时尝试加载的文件
const defaultEnvFile = ".env"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run 解析参数并运行节点，返回进程退出码
func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, err := loadConfig(args, stderr, os.LookupEnv)
	if errors.Is(err, flag.ErrHelp) {
		return app.ExitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return app.ExitFailure
	}

	log.Info("启动引导节点", "port", cfg.Transport.Port, "join_ipfs", cfg.JoinIPFS, "metrics", cfg.Metrics.Enable)
	if err := app.Run(ctx, cfg); err != nil {
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return app.ExitCode(err)
	}
	return app.ExitOK
}

// loadConfig 按优先级合并配置
//
// 优先级（从低到高）：默认值、-config 文件、.env 文件、BOOTNODE_* 环境变量、命令行参数。
func loadConfig(args []string, stderr io.Writer, lookup config.LookupFunc) (*config.Config, error) {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	if f.configFile != "" {
		if cfg, err = config.LoadFile(f.configFile); err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
	}

	env, err := readEnvFile(f.envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(overlay(lookup, env)); err != nil {
		return nil, fmt.Errorf("环境变量错误: %w", err)
	}

	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readEnvFile 读取 .env 文件
//
// 显式指定的文件必须存在；默认文件不存在时忽略。
func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
		if _, err := os.Stat(path); err != nil {
			return nil, nil
		}
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("读取环境文件 %s 失败: %w", path, err)
	}
	return env, nil
}

// overlay 进程环境变量优先于 .env 文件
func overlay(lookup config.LookupFunc, file map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}
}
