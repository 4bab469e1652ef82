package state

import (
	"sync"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// Entry 一条回报：标签 → 最近一次轮询值
type Entry struct {
	Label string
	Value string
}

// Snapshot 是回报值的内存表：Label → Value。
// 只有翻译循环写入，HTTP 请求读取；所有临界区只做 O(1) 或拷贝操作。
type Snapshot struct {
	mu     sync.Mutex
	values map[string]string
	order  []string // 标签首次出现的顺序
}

// NewSnapshot 返回一个空表
func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string]string)}
}

// Init 清空后按给定顺序为每个标签写入缺省值
func (s *Snapshot) Init(labels []string, defaultValue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string, len(labels))
	s.order = s.order[:0]
	for _, l := range labels {
		if _, ok := s.values[l]; !ok {
			s.order = append(s.order, l)
		}
		s.values[l] = defaultValue
	}
}

// Set 写入或更新一个标签的值
func (s *Snapshot) Set(label, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[label]; !ok {
		s.order = append(s.order, label)
	}
	s.values[label] = value
}

// Get 读取单个标签
func (s *Snapshot) Get(label string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[label]
	if !ok {
		return "", errors.NewCommonEdgeX(
			errors.KindEntityDoesNotExist,
			"reporter "+label+" not found",
			nil,
		)
	}
	return v, nil
}

// Entries 复制一份全部回报，调用方在锁外格式化
func (s *Snapshot) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.order))
	for _, l := range s.order {
		out = append(out, Entry{Label: l, Value: s.values[l]})
	}
	return out
}

// Len 当前标签个数
func (s *Snapshot) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
