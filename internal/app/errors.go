package app

import "errors"

// ErrNoConfig 未提供配置
var ErrNoConfig = errors.New("app: config is required")
