package translator

import (
	"os"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
)

// FailureHandler 翻译循环致命错误的唯一出口。
// 设备与客户端的状态已无法保证一致，默认实现直接结束进程；
// 需要监督重启时替换它即可，翻译逻辑不用改。
type FailureHandler func(err error)

// exit 供测试替换
var exit = os.Exit

// ExitOnFailure 记录诊断信息并以状态码 1 退出
func ExitOnFailure(lc logger.LoggingClient) FailureHandler {
	return func(err error) {
		lc.Errorf("translator loop terminated: %v", err)
		exit(1)
	}
}
