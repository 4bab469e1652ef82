// Package state 保存翻译循环与请求处理之间共享的数据：
// 回报快照、命令队列以及蜂鸣器/舵机兼容标志。
package state

import "sync/atomic"

// Shared 同一设备会话的全部共享状态，按引用交给 Translator 和 Router
type Shared struct {
	Snapshot *Snapshot
	Queue    *Queue

	toneOrServo atomic.Bool
}

func NewShared() *Shared {
	return &Shared{
		Snapshot: NewSnapshot(),
		Queue:    NewQueue(),
	}
}

// MarkToneOrServo 置位兼容标志；进程存活期间不会复位
func (s *Shared) MarkToneOrServo() {
	s.toneOrServo.Store(true)
}

// ToneOrServoActive 是否已经下发过蜂鸣器或舵机命令
func (s *Shared) ToneOrServoActive() bool {
	return s.toneOrServo.Load()
}
