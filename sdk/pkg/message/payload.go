package message

import (
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/json"
)

// 信封字段，只用于日志关联，不参与去重或关联
const (
	FieldMessageID      = "message_id"
	FieldConversationID = "conversation_id"
)

// Payload 队列上传输的字段映射，不做 schema 校验
type Payload map[string]interface{}

// Decode 解析消息体；空消息体、非法 JSON 或非对象 JSON 都得到空映射
func Decode(body []byte) Payload {
	if len(body) == 0 {
		return Payload{}
	}
	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}
	}
	m, err := cast.ToStringMapE(raw)
	if err != nil || m == nil {
		return Payload{}
	}
	return Payload(m)
}

// Encode 序列化为 JSON，nil 编码为 {}
func (p Payload) Encode() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(p))
}

// Present 非空映射才算取到了输入
func (p Payload) Present() bool {
	return len(p) > 0
}

// String 字段缺失或类型不符时返回空串
func (p Payload) String(key string) string {
	return cast.ToString(p[key])
}

// StringOr 字段缺失时返回 def
func (p Payload) StringOr(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	return cast.ToString(v)
}

// Map 字段不是映射时返回空映射
func (p Payload) Map(key string) Payload {
	m, err := cast.ToStringMapE(p[key])
	if err != nil || m == nil {
		return Payload{}
	}
	return Payload(m)
}

// Slice 字段不是列表时返回空列表
func (p Payload) Slice(key string) []interface{} {
	s, err := cast.ToSliceE(p[key])
	if err != nil {
		return []interface{}{}
	}
	return s
}

func (p Payload) MessageID() string {
	return p.StringOr(FieldMessageID, "unknown")
}

func (p Payload) ConversationID() string {
	return p.StringOr(FieldConversationID, "unknown")
}

// NewEnvelope 复制 fields 并生成新的 message_id / conversation_id
func NewEnvelope(fields Payload) Payload {
	p := make(Payload, len(fields)+2)
	for k, v := range fields {
		p[k] = v
	}
	p[FieldMessageID] = "msg-" + uuid.NewString()
	p[FieldConversationID] = "conv-" + uuid.NewString()
	return p
}
