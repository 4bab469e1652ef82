package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	apiVersion      = "v3"
	jsonContentType = "application/json"
)

// EdgexMessage EdgeX MessageBus 的通用信封
type EdgexMessage struct {
	ApiVersion    string          `json:"apiVersion"`
	ReceivedTopic string          `json:"receivedTopic,omitempty"`
	CorrelationID string          `json:"correlationID"`
	RequestID     string          `json:"requestID"`
	ErrorCode     int             `json:"errorCode"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	ContentType   string          `json:"contentType"`
}

// ReportPayload 周期发布的回报快照，Report 与 /poll 的正文一致
type ReportPayload struct {
	Device    string `json:"device"`
	Timestamp int64  `json:"timestamp"` // Unix 纳秒
	Report    string `json:"report"`
}

// CommandPayload 命令主题上的请求，Path 形如 setpin/7/200
type CommandPayload struct {
	Path string `json:"path"`
}

// CommandReply 命令结果；Body 与 HTTP 接口返回的文本相同
type CommandReply struct {
	Path     string `json:"path"`
	Accepted bool   `json:"accepted"`
	Body     string `json:"body"`
}

// newEnvelope correlationID 为空时生成新的
func newEnvelope(correlationID string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return json.Marshal(EdgexMessage{
		ApiVersion:    apiVersion,
		CorrelationID: correlationID,
		RequestID:     uuid.NewString(),
		Payload:       raw,
		ContentType:   jsonContentType,
	})
}

func newReport(device, report string) ReportPayload {
	return ReportPayload{Device: device, Timestamp: time.Now().UnixNano(), Report: report}
}

// decodeCommand 接受 EdgeX 信封，也接受裸的命令路径文本
func decodeCommand(raw []byte) (path, correlationID string) {
	var msg EdgexMessage
	if err := json.Unmarshal(raw, &msg); err == nil && len(msg.Payload) > 0 {
		var cp CommandPayload
		if err := json.Unmarshal(msg.Payload, &cp); err == nil && cp.Path != "" {
			return strings.TrimPrefix(cp.Path, "/"), msg.CorrelationID
		}
	}
	return strings.TrimPrefix(strings.TrimSpace(string(raw)), "/"), ""
}
