package state

import "sync"

// ParsedCommand 经过校验的客户端命令，由翻译循环恰好消费一次
type ParsedCommand struct {
	Name      string
	Pin       string
	ValueType string
	Params    []string
	Path      string // 原始请求路径，用于诊断
}

// Queue 多生产者、单消费者的 FIFO
type Queue struct {
	mu     sync.Mutex
	items  []ParsedCommand
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push 追加到队尾并唤醒等待中的消费者
func (q *Queue) Push(cmd ParsedCommand) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Notify 有新命令入队时可读；消费者读到后应再次 Pop 直到队列为空
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// Pop 取出队首；队列为空时返回 false
func (q *Queue) Pop() (ParsedCommand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return ParsedCommand{}, false
	}
	cmd := q.items[0]
	q.items[0] = ParsedCommand{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return cmd, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
