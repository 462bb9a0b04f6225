package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solwatch/buyops/worker"
)

// minOracleTimeout floors the cross-process deadline: the worker still has
// to spawn, fetch market data and reply inside it.
const minOracleTimeout = 10 * time.Second

// WorkerOracle runs the decision oracle in an isolated process per call via
// the worker substrate, so a pathological evaluation cannot hang the
// scheduler.
type WorkerOracle struct {
	BinPath string
	Env     []string
}

// Evaluate sends one evaluation request and awaits the single response.
func (w *WorkerOracle) Evaluate(ctx context.Context, req worker.EvaluateRequest) (*worker.EvaluateResponse, error) {
	id := uuid.NewString()
	envelope, err := worker.NewRequest(worker.KindEvaluate, id, req)
	if err != nil {
		return nil, err
	}

	timeout := minOracleTimeout
	if budget := time.Duration(req.EvalTimeoutMs)*time.Millisecond + 5*time.Second; budget > timeout {
		timeout = budget
	}

	resp, err := worker.CallWithTimeout(ctx, w.BinPath, envelope, worker.CallOptions{
		Env:     w.Env,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	var out worker.EvaluateResponse
	if err := resp.Decode(worker.KindEvaluate, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetachedMonitorSpawner launches the swap-monitor worker fire-and-forget and
// tracks its handle for shutdown termination.
type DetachedMonitorSpawner struct {
	BinPath string
	Set     *worker.DetachedSet
}

// Spawn starts one detached monitor for a dispatched swap.
func (s *DetachedMonitorSpawner) Spawn(payload worker.SwapMonitorPayload) (worker.DetachedHandle, error) {
	handle, err := worker.SpawnDetached(s.BinPath, worker.SpawnOptions{
		Payload:           payload,
		PayloadFilePrefix: "swapmonitor",
	})
	if err != nil {
		return worker.DetachedHandle{}, err
	}
	if s.Set != nil {
		s.Set.Add(handle)
	}
	return handle, nil
}
