package app

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/internal/core/discovery/kademlia"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/liveness"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/nat/autonat"
	"github.com/dep2p/go-bootnode/internal/core/orchestrator"
	"github.com/dep2p/go-bootnode/internal/core/peerstore"
	"github.com/dep2p/go-bootnode/internal/core/protocol/identify"
	relay "github.com/dep2p/go-bootnode/internal/core/relay/server"
	"github.com/dep2p/go-bootnode/internal/core/swarm"
	"github.com/dep2p/go-bootnode/internal/core/transport"
)

// FoundationModules 基础层模块
//
// Tier 1: identity, peerstore
func FoundationModules() fx.Option {
	return fx.Options(
		identity.Module(),
		peerstore.Module(),
	)
}

// TransportModules 传输层模块
//
// Tier 2: transport（TCP + QUIC）, swarm, host
func TransportModules() fx.Option {
	return fx.Options(
		transport.Module(),
		swarm.Module(),
		host.Module(),
	)
}

// ProtocolModules 协议层模块
//
// Tier 3: identify, kademlia, autonat, liveness, relay
// 五个模块全部强制启用，编排器合并它们的事件流。
func ProtocolModules() fx.Option {
	return fx.Options(
		identify.Module(),
		kademlia.Module(),
		autonat.Module(),
		liveness.Module(),
		relay.Module(),
	)
}

// MonitoringModules 监控层模块
//
// Tier 4: metrics
func MonitoringModules() fx.Option {
	return metrics.Module()
}

// OrchestratorModules 编排层模块
//
// Tier 5: orchestrator
func OrchestratorModules() fx.Option {
	return orchestrator.Module()
}
