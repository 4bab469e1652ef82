package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/linjuya-lu/device_s2a_go/internal/protocol"
)

// fakeDevice 模拟运行 JSON 固件的单片机，实现 serial.Port
type fakeDevice struct {
	mu       sync.Mutex
	statuses []string          // 依次回复的 status，最后一个重复使用
	values   map[string]string // pin → 读回的值
	ack      string            // 写类命令的应答
	garbled  map[string]string // pin → 原样返回的读应答
	received []map[string]interface{}
	pending  bytes.Buffer

	// 以下计数器只作用于 status 查询，按顺序消耗
	mute      int          // 不应答
	badStatus int          // 应答非 JSON
	late      int          // 应答在读超时之后才到达
	delayed   bytes.Buffer // 已发出但尚未到达的应答
	flushes   int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		statuses: []string{protocol.StatusReady},
		values:   map[string]string{},
		garbled:  map[string]string{},
		ack:      protocol.Ack,
	}
}

func (d *fakeDevice) Open() error  { return nil }
func (d *fakeDevice) Close() error { return nil }

// Flush 丢弃已到达但未读取的数据
func (d *fakeDevice) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushes++
	d.pending.Reset()
	return nil
}
func (d *fakeDevice) Name() string { return "fake-arduino" }

func (d *fakeDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending.Len() == 0 {
		// 迟到的应答在这次读超时之后才进入接收缓冲
		_, _ = d.pending.ReadFrom(&d.delayed)
		return 0, io.EOF
	}
	return d.pending.Read(p)
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		var msg map[string]interface{}
		if err := dec.Decode(&msg); err != nil {
			return 0, err
		}
		d.received = append(d.received, msg)
		if r := d.reply(msg); r != "" {
			d.pending.WriteString(r)
			d.pending.WriteByte('\n')
		}
	}
	return len(p), nil
}

func (d *fakeDevice) reply(msg map[string]interface{}) string {
	switch msg["query"] {
	case "status":
		switch {
		case d.mute > 0:
			d.mute--
			return ""
		case d.badStatus > 0:
			d.badStatus--
			return "not json"
		}
		status := d.statuses[0]
		if len(d.statuses) > 1 {
			d.statuses = d.statuses[1:]
		}
		reply := fmt.Sprintf(`{"status":%q}`, status)
		if d.late > 0 {
			d.late--
			d.delayed.WriteString(reply + "\n")
			return ""
		}
		return reply
	case "read":
		pin := fmt.Sprint(msg["pin"])
		if _, ok := msg["encoder"]; ok {
			return fmt.Sprintf(`{"pinValue":{"encoder":100,"value":%s}}`, scalar(d.values[protocol.EncoderPin]))
		}
		if g, ok := d.garbled[pin]; ok {
			return g
		}
		v, ok := d.values[pin]
		if !ok {
			v = "0"
		}
		return fmt.Sprintf(`{"pinValue":{"pin":%s,"value":%s}}`, scalar(pin), scalar(v))
	}
	return d.ack
}

func (d *fakeDevice) setValue(pin, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[pin] = value
}

// commands 返回收到的所有 command 报文（不含查询）
func (d *fakeDevice) commands() []map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []map[string]interface{}
	for _, m := range d.received {
		if _, ok := m["command"]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (d *fakeDevice) queries(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, m := range d.received {
		if m["query"] == kind {
			n++
		}
	}
	return n
}

func scalar(s string) string {
	b, _ := json.Marshal(protocol.Scalar(s))
	return string(b)
}
