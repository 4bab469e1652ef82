package serial

import (
	stderrors "errors"
	"io"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/device_s2a_go/internal/protocol"
)

// LineTransport 在 Port 之上提供按行收发的 JSON 请求/应答
type LineTransport struct {
	port  Port
	lc    logger.LoggingClient
	parse FrameParser
	buf   []byte
	tmp   []byte
}

func NewLineTransport(p Port, lc logger.LoggingClient) *LineTransport {
	return &LineTransport{
		port:  p,
		lc:    lc,
		parse: LineParser(MaxLineLength),
		tmp:   make([]byte, 256),
	}
}

// Open 打开底层串口
func (t *LineTransport) Open() error {
	t.lc.Infof("opening serial port %s", t.port.Name())
	if err := t.port.Open(); err != nil {
		return errors.NewCommonEdgeX(errors.KindCommunicationError, "open port "+t.port.Name(), err)
	}
	return nil
}

// Close 清空缓冲后关闭串口；阻塞中的 ReadLine 会随之返回
func (t *LineTransport) Close() error {
	t.flush()
	return t.port.Close()
}

// WriteLine 写一条报文并追加换行
func (t *LineTransport) WriteLine(msg []byte) error {
	line := make([]byte, 0, len(msg)+1)
	line = append(line, msg...)
	line = append(line, '\n')
	if _, err := t.port.Write(line); err != nil {
		return errors.NewCommonEdgeX(errors.KindCommunicationError, "write to "+t.port.Name(), err)
	}
	t.lc.Tracef("⇨ %s", msg)
	return nil
}

// ReadLine 读取一行；超时无数据为 CommunicationError，超长为 LimitExceeded。
// 两种错误都会丢弃已累积的半行，迟到的剩余部分由 Discard 清掉。
func (t *LineTransport) ReadLine() (string, error) {
	for {
		frame, rest, err := t.parse(t.buf)
		if err != nil {
			t.buf = nil
			t.flush()
			return "", err
		}
		if frame != nil {
			t.buf = rest
			t.lc.Tracef("⇦ %s", frame)
			return string(frame), nil
		}

		n, err := t.port.Read(t.tmp)
		if n > 0 {
			t.buf = append(t.buf, t.tmp[:n]...)
			continue
		}
		t.buf = nil
		if err == nil || stderrors.Is(err, io.EOF) {
			return "", errors.NewCommonEdgeX(errors.KindCommunicationError, "read timeout on "+t.port.Name(), nil)
		}
		return "", errors.NewCommonEdgeX(errors.KindCommunicationError, "read from "+t.port.Name(), err)
	}
}

// SendCommand 发送写类命令并等待 "{}" 应答；其他应答都是协议错误
func (t *LineTransport) SendCommand(msg []byte) error {
	if err := t.WriteLine(msg); err != nil {
		return err
	}
	reply, err := t.ReadLine()
	if err != nil {
		return err
	}
	if !protocol.IsAck(reply) {
		return errors.NewCommonEdgeX(errors.KindContractInvalid, "received bad reply '"+reply+"' to "+string(msg), nil)
	}
	return nil
}

// Query 发送查询并返回设备的一行应答
func (t *LineTransport) Query(msg []byte) (string, error) {
	if err := t.WriteLine(msg); err != nil {
		return "", err
	}
	return t.ReadLine()
}

// Discard 丢弃尚未读取的输入（缓冲中的半行以及串口里迟到的应答），
// 用于超时重试前重新对齐请求与应答
func (t *LineTransport) Discard() {
	t.buf = nil
	t.flush()
}

func (t *LineTransport) flush() {
	if err := t.port.Flush(); err != nil {
		t.lc.Warnf("flush %s: %v", t.port.Name(), err)
	}
}
