package orchestrator

import (
	"context"
	"time"

	"github.com/linkeep/linkeep/agent"
	"github.com/linkeep/linkeep/bus"
)

// LivenessState tracks one tab's agent during a single request. It is
// request-scoped: nothing here survives the request, and no lock guards
// it — a second concurrent request for the same tab runs its own
// independent probe/inject sequence, which is a tolerated race since
// every step is idempotent.
type LivenessState int

const (
	LivenessUnknown LivenessState = iota
	LivenessAlive
	LivenessInjecting
	LivenessVerifying
	LivenessDead
)

func (s LivenessState) String() string {
	switch s {
	case LivenessAlive:
		return "alive"
	case LivenessInjecting:
		return "injecting"
	case LivenessVerifying:
		return "verifying"
	case LivenessDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ensureAlive walks the liveness ladder for one tab:
//
//	ping → (on failure) inject once → settle → re-ping once
//
// Injection is bounded to exactly one attempt; a second failure marks
// the agent dead and the caller falls back. Both a ping timeout and a
// delivery failure take the injection path — either way the agent is
// not answering.
func (o *Orchestrator) ensureAlive(ctx context.Context, conn AgentConn, tabID string) LivenessState {
	state := LivenessUnknown

	if o.ping(ctx, conn) {
		state = LivenessAlive
		o.logger.Debug("orchestrator: agent alive", "tab", tabID)
		return state
	}

	state = LivenessInjecting
	o.logger.Debug("orchestrator: agent unresponsive, injecting", "tab", tabID)

	script, err := o.script()
	if err != nil {
		o.logger.Warn("orchestrator: agent script unavailable", "error", err)
		return LivenessDead
	}
	if err := conn.Inject(ctx, script); err != nil {
		o.logger.Warn("orchestrator: injection failed", "tab", tabID, "error", err)
		return LivenessDead
	}

	// Give the freshly evaluated script a moment before re-probing.
	state = LivenessVerifying
	select {
	case <-ctx.Done():
		return LivenessDead
	case <-time.After(o.agentCfg.SettleDelay):
	}

	if o.ping(ctx, conn) {
		o.logger.Debug("orchestrator: agent alive after injection", "tab", tabID)
		return LivenessAlive
	}

	o.logger.Warn("orchestrator: agent dead after injection", "tab", tabID)
	return LivenessDead
}

// ping probes the agent with the short liveness timeout. The probe
// carries no business data; it only answers "is anyone home".
func (o *Orchestrator) ping(ctx context.Context, conn AgentConn) bool {
	data, err := bus.Send(ctx, conn, bus.TypePing, nil, o.agentCfg.PingTimeout)
	if err != nil {
		return false
	}
	return agent.IsPong(data)
}
