// Package router 校验客户端的 GET 路径命令并入队，同时把回报快照格式化为轮询应答。
package router

import (
	"strings"
	"sync"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/linjuya-lu/device_s2a_go/internal/state"
)

const (
	// Okay 命令已入队；也是无可回报时的占位应答
	Okay = "okay"
	// NothingToReport 快照为空时 /poll 的应答
	NothingToReport = Okay

	unknownCommand = "unknown command: "
	wrongParams    = "wrong number of parameters: "
)

// Result Submit 的结果；Body 即返回给客户端的文本
type Result struct {
	Accepted bool
	Body     string
}

// Router 即 CommandRouter
type Router struct {
	lc      logger.LoggingClient
	catalog *config.Catalog
	shared  *state.Shared

	firstPoll sync.Once
}

func New(lc logger.LoggingClient, catalog *config.Catalog, shared *state.Shared) *Router {
	return &Router{lc: lc, catalog: catalog, shared: shared}
}

// Submit 校验路径（不含前导 "/"）并入队。
// 接受只代表"已排队"，设备端是否执行完毕无法同步得知。
func (r *Router) Submit(path string) Result {
	segments := strings.Split(path, "/")
	spec, ok := r.catalog.Command(segments[0])
	if !ok {
		return Result{Body: unknownCommand + segments[0]}
	}
	params := segments[1:]
	if len(params) != spec.ParamCount {
		return Result{Body: wrongParams + path}
	}

	cmd := state.ParsedCommand{
		Name:      spec.Name,
		Pin:       spec.Pin,
		ValueType: spec.ValueType,
		Params:    params,
		Path:      path,
	}
	if spec.ParamCount == 0 {
		cmd.Params = []string{spec.FixedValue}
	}
	r.shared.Queue.Push(cmd)
	r.lc.Debugf("queued command %s", path)
	return Result{Accepted: true, Body: Okay}
}

// Report /poll 的应答；首次调用时提示客户端已就绪
func (r *Router) Report() string {
	r.firstPoll.Do(func() {
		r.lc.Info("client is initialized and ready")
	})
	return r.Render()
}

// Render 在锁内拷贝快照，在锁外逐行格式化 "<label> <value>"
func (r *Router) Render() string {
	entries := r.shared.Snapshot.Entries()
	if len(entries) == 0 {
		return NothingToReport
	}
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Label)
		sb.WriteByte(' ')
		sb.WriteString(e.Value)
		sb.WriteByte('\n')
	}
	return sb.String()
}
