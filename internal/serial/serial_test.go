package serial

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort 从 in 读、向 out 写；in 读空即视为超时
type fakePort struct {
	in      bytes.Buffer
	out     bytes.Buffer
	chunk   int
	readErr error
	opened  bool
	closed  bool
	flushes int
}

func (f *fakePort) Open() error  { f.opened = true; return nil }
func (f *fakePort) Close() error { f.closed = true; return nil }
func (f *fakePort) Name() string { return "fake" }
func (f *fakePort) Flush() error { f.flushes++; return nil }

func (f *fakePort) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.in.Read(p)
}

func (f *fakePort) Write(p []byte) (int, error) {
	return f.out.Write(p)
}

func newTransport(input string) (*LineTransport, *fakePort) {
	fp := &fakePort{}
	fp.in.WriteString(input)
	return NewLineTransport(fp, logger.NewMockClient()), fp
}

func TestNewPort(t *testing.T) {
	for _, typ := range []string{"uart", "rs232", "rs485"} {
		p, err := NewPort(config.Port{Name: "arduino", Type: typ})
		require.NoError(t, err, typ)
		assert.Equal(t, "arduino", p.Name())
	}
	_, err := NewPort(config.Port{Type: "can"})
	assert.Error(t, err)
}

func TestLineParser(t *testing.T) {
	parse := LineParser(10)

	frame, rest, err := parse([]byte("abc\r\ndef"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(frame))
	assert.Equal(t, "def", string(rest))

	frame, rest, err = parse([]byte("partial"))
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Equal(t, "partial", string(rest))

	_, _, err = parse([]byte("0123456789X"))
	require.Error(t, err)
	assert.Equal(t, errors.KindLimitExceeded, errors.Kind(err))

	_, _, err = parse([]byte("0123456789X\n"))
	assert.Error(t, err)
}

func TestTxDuration(t *testing.T) {
	assert.Zero(t, txDuration(10, 0))
	assert.Equal(t, "1ms", txDuration(12, 115200).Round(1e6).String())
}

func TestReadLineAcrossChunks(t *testing.T) {
	tr, fp := newTransport("{\"status\":\"ready\"}\n{}\n")
	fp.chunk = 3

	line, err := tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ready"}`, line)

	line, err = tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "{}", line)
}

func TestReadLineTimeout(t *testing.T) {
	tr, _ := newTransport("")
	_, err := tr.ReadLine()
	require.Error(t, err)
	assert.Equal(t, errors.KindCommunicationError, errors.Kind(err))
}

func TestReadLineTimeoutDropsPartialLine(t *testing.T) {
	tr, fp := newTransport(`{"status":"rea`)
	_, err := tr.ReadLine()
	require.Error(t, err)
	assert.Equal(t, errors.KindCommunicationError, errors.Kind(err))

	fp.in.WriteString("{}\n")
	line, err := tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "{}", line)
}

func TestDiscard(t *testing.T) {
	tr, fp := newTransport("{\"status\":\"ready\"}\n{\"status\":\"ready\"}\n")
	line, err := tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ready"}`, line)

	// 第二条应答已读进缓冲，Discard 后不能再被当作下一次请求的应答
	tr.Discard()
	assert.Equal(t, 1, fp.flushes)
	fp.in.WriteString("{}\n")
	require.NoError(t, tr.SendCommand([]byte(`{"command":"pinMode","pin":13,"mode":"output"}`)))
}

func TestReadLineError(t *testing.T) {
	tr, fp := newTransport("")
	fp.readErr = stderrors.New("device unplugged")
	_, err := tr.ReadLine()
	require.Error(t, err)
	assert.Equal(t, errors.KindCommunicationError, errors.Kind(err))
}

func TestReadLineOverrunFlushes(t *testing.T) {
	tr, fp := newTransport(strings.Repeat("x", MaxLineLength+5))
	_, err := tr.ReadLine()
	require.Error(t, err)
	assert.Equal(t, errors.KindLimitExceeded, errors.Kind(err))
	assert.Equal(t, 1, fp.flushes)
}

func TestSendCommand(t *testing.T) {
	tr, fp := newTransport("{}\n")
	require.NoError(t, tr.SendCommand([]byte(`{"command":"pinMode","pin":13,"mode":"output"}`)))
	assert.Equal(t, "{\"command\":\"pinMode\",\"pin\":13,\"mode\":\"output\"}\n", fp.out.String())
}

func TestSendCommandBadAck(t *testing.T) {
	tr, _ := newTransport("{\"err\":1}\n")
	err := tr.SendCommand([]byte(`{"command":"write"}`))
	require.Error(t, err)
	assert.Equal(t, errors.KindContractInvalid, errors.Kind(err))
	assert.Contains(t, err.Error(), `{"err":1}`)
}

func TestQuery(t *testing.T) {
	tr, fp := newTransport("{\"pinValue\":{\"pin\":13,\"value\":1}}\r\n")
	reply, err := tr.Query([]byte(`{"query":"read","pin":13,"type":"digital"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"pinValue":{"pin":13,"value":1}}`, reply)
	assert.True(t, strings.HasSuffix(fp.out.String(), "\n"))
}

func TestOpenClose(t *testing.T) {
	tr, fp := newTransport("")
	require.NoError(t, tr.Open())
	require.NoError(t, tr.Close())
	assert.True(t, fp.opened)
	assert.True(t, fp.closed)
	assert.Equal(t, 1, fp.flushes)
}

func TestPortNotOpen(t *testing.T) {
	for _, typ := range []string{"uart", "rs485"} {
		p, err := NewPort(config.Port{Name: "arduino", Device: "/dev/null-tty", Type: typ})
		require.NoError(t, err)

		_, err = p.Read(make([]byte, 8))
		assert.Error(t, err, typ)
		_, err = p.Write([]byte("{}"))
		assert.Error(t, err, typ)
		assert.NoError(t, p.Flush(), typ)
	}
}
