// Package translator 负责设备生命周期（就绪握手、引脚初始化）以及常驻的轮询/下发循环。
//
// 循环是回报快照的唯一写入者、命令队列的唯一消费者，因此不存在写写竞争与多消费者竞争。
package translator

import (
	"context"
	"fmt"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/linjuya-lu/device_s2a_go/internal/protocol"
	"github.com/linjuya-lu/device_s2a_go/internal/state"
	"golang.org/x/time/rate"
)

// Transport 与设备之间的行式请求/应答通道
type Transport interface {
	// SendCommand 发送写类命令并等待 "{}" 确认
	SendCommand(msg []byte) error
	// Query 发送查询并返回一行应答
	Query(msg []byte) (string, error)
	// Discard 丢弃尚未读取的输入
	Discard()
}

type Readiness int

const (
	NotReady Readiness = iota
	Ready
)

func (r Readiness) String() string {
	if r == Ready {
		return "Ready"
	}
	return "NotReady"
}

// Outcome DispatchOneCommand 的结果
type Outcome int

const (
	Idle Outcome = iota
	Dispatched
)

// DefaultReporterValue 首次轮询前每个标签的值
const DefaultReporterValue = "0"

// PollResult 一次轮询得到的 标签 → 值
type PollResult struct {
	Label string
	Value string
}

type Options struct {
	HandshakeAttempts int
	HandshakeInterval time.Duration
	// PollInterval > 0 时限制每轮循环的最小间隔
	PollInterval time.Duration
}

type Translator struct {
	lc        logger.LoggingClient
	transport Transport
	catalog   *config.Catalog
	shared    *state.Shared
	opts      Options
	limiter   *rate.Limiter
	onFailure FailureHandler

	cursor int // 下一个要轮询的回报下标
}

func New(lc logger.LoggingClient, transport Transport, catalog *config.Catalog, shared *state.Shared, opts Options) *Translator {
	if opts.HandshakeAttempts <= 0 {
		opts.HandshakeAttempts = config.DefaultHandshakeAttempts
	}
	t := &Translator{
		lc:        lc,
		transport: transport,
		catalog:   catalog,
		shared:    shared,
		opts:      opts,
		onFailure: ExitOnFailure(lc),
	}
	if opts.PollInterval > 0 {
		t.limiter = rate.NewLimiter(rate.Every(opts.PollInterval), 1)
	}
	return t
}

// SetFailureHandler 替换默认的"记录并退出进程"策略
func (t *Translator) SetFailureHandler(h FailureHandler) {
	t.onFailure = h
}

// Handshake 查询设备状态，最多尝试 HandshakeAttempts 次；
// 传输错误与无法解析的应答都计为一次失败尝试，重试前丢弃残留输入。
func (t *Translator) Handshake(ctx context.Context) Readiness {
	n := t.opts.HandshakeAttempts
	for attempt := 1; attempt <= n; attempt++ {
		if ctx.Err() != nil {
			return NotReady
		}
		if attempt > 1 {
			// 上一次的应答可能在超时后才到，先清掉再问
			t.transport.Discard()
		}
		status, err := t.queryStatus()
		if err == nil && status == protocol.StatusReady {
			t.lc.Infof("device ready after %d attempt(s)", attempt)
			return Ready
		}
		if err != nil {
			t.lc.Warnf("status query %d/%d failed: %v", attempt, n, err)
		} else {
			t.lc.Warnf("status query %d/%d: device reports %q", attempt, n, status)
		}
		if attempt < n && t.opts.HandshakeInterval > 0 {
			select {
			case <-ctx.Done():
				return NotReady
			case <-time.After(t.opts.HandshakeInterval):
			}
		}
	}
	return NotReady
}

func (t *Translator) queryStatus() (string, error) {
	reply, err := t.transport.Query(protocol.StatusQuery())
	if err != nil {
		return "", err
	}
	return protocol.ParseStatus(reply)
}

// InitializePins 设置引脚方向与初始输出值，并为每个回报标签写入缺省值。
// 必须在 Run 之前完成。
func (t *Translator) InitializePins() error {
	for _, d := range t.catalog.PinDirectives {
		if err := t.transport.SendCommand(protocol.PinMode(d.Pin, d.Mode)); err != nil {
			return fmt.Errorf("set pin %s mode %s: %w", d.Pin, d.Mode, err)
		}
	}
	for _, o := range t.catalog.InitialOutputs {
		if err := t.transport.SendCommand(protocol.WritePin(o.Pin, o.ValueType, o.Value)); err != nil {
			return fmt.Errorf("write initial value to pin %s: %w", o.Pin, err)
		}
	}
	t.shared.Snapshot.Init(t.catalog.Labels(), DefaultReporterValue)
	t.lc.Infof("initialized %d pin directions, %d outputs, %d reporters",
		len(t.catalog.PinDirectives), len(t.catalog.InitialOutputs), len(t.catalog.Reporters))
	return nil
}

// PollOnce 按轮转顺序读取下一个回报引脚；每次调用前进一步，到末尾后回绕
func (t *Translator) PollOnce() (PollResult, error) {
	reporters := t.catalog.Reporters
	if len(reporters) == 0 {
		return PollResult{}, errors.NewCommonEdgeX(errors.KindContractInvalid, "no reporters configured", nil)
	}
	r := reporters[t.cursor]
	t.cursor = (t.cursor + 1) % len(reporters)

	reply, err := t.transport.Query(protocol.ReadPin(r.Pin, r.ValueType))
	if err != nil {
		return PollResult{}, fmt.Errorf("read pin %s: %w", r.Pin, err)
	}
	pv, err := protocol.ParsePinValue(reply)
	if err != nil {
		return PollResult{}, err
	}
	rep, ok := t.catalog.ReporterForPin(pv.Pin)
	if !ok {
		return PollResult{}, errors.NewCommonEdgeX(errors.KindContractInvalid, "reply for unconfigured pin "+pv.Pin+": '"+reply+"'", nil)
	}
	return PollResult{Label: rep.Label, Value: pv.Value}, nil
}

// ApplyPoll 在锁内写入一条结果，锁内不做 I/O
func (t *Translator) ApplyPoll(r PollResult) {
	t.shared.Snapshot.Set(r.Label, r.Value)
}

// DispatchOneCommand 队列非空时取出恰好一条命令发往设备并等待确认
func (t *Translator) DispatchOneCommand() (Outcome, error) {
	cmd, ok := t.shared.Queue.Pop()
	if !ok {
		return Idle, nil
	}
	msg, err := t.render(cmd)
	if err != nil {
		return Dispatched, err
	}
	if err := t.transport.SendCommand(msg); err != nil {
		return Dispatched, fmt.Errorf("command %s: %w", cmd.Path, err)
	}
	t.lc.Debugf("dispatched %s as %s", cmd.Path, msg)
	return Dispatched, nil
}

// Run 轮询/下发主循环，直到 ctx 取消或出现致命错误。
// 每轮开始以及轮询与下发之间检查取消信号。
func (t *Translator) Run(ctx context.Context) error {
	polling := len(t.catalog.Reporters) > 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if polling {
			res, err := t.PollOnce()
			if err != nil {
				return fmt.Errorf("poll: %w", err)
			}
			t.ApplyPoll(res)
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		outcome, err := t.DispatchOneCommand()
		if err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
		if !polling && outcome == Idle {
			// 没有回报可轮询时，等待新命令而不是空转
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.shared.Queue.Notify():
			}
		}
	}
}

// Start 在后台运行循环；非取消导致的退出交给 FailureHandler。
// 返回的 channel 在循环结束后关闭。
func (t *Translator) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := t.Run(ctx)
		if err == nil || ctx.Err() != nil {
			t.lc.Info("translator loop stopped")
			return
		}
		t.onFailure(err)
	}()
	return done
}
