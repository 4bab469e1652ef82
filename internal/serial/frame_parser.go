package serial

import (
	"bytes"
	"strconv"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// MaxLineLength 单行未遇到换行符前允许累积的最大字节数
const MaxLineLength = 80

// FrameParser 定义了一个从字节流中提取完整帧的函数类型。
// 它返回：
//   - frame: 抽取出的完整帧（若数据不足以组成完整帧则返回 nil）
//   - rest: 余下未处理的字节（用于下一次解析时继续累积）
//   - err:  解析出错时的错误（此时应丢弃整个缓冲区）
type FrameParser func(buf []byte) (frame []byte, rest []byte, err error)

// LineParser 以 '\n' 为帧尾，返回的帧不含换行符和行尾 '\r'。
// 累积超过 limit 字节仍未见到帧尾时返回 LimitExceeded。
func LineParser(limit int) FrameParser {
	return func(buf []byte) ([]byte, []byte, error) {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			if len(buf) > limit {
				return nil, nil, overrun(limit)
			}
			return nil, buf, nil
		}
		if i > limit {
			return nil, nil, overrun(limit)
		}
		frame := make([]byte, i)
		copy(frame, buf[:i])
		return bytes.TrimSuffix(frame, []byte{'\r'}), buf[i+1:], nil
	}
}

func overrun(limit int) error {
	return errors.NewCommonEdgeX(errors.KindLimitExceeded, "line exceeded "+strconv.Itoa(limit)+" characters without a terminator", nil)
}
