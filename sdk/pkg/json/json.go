package json

import (
	jsoniter "github.com/json-iterator/go"
)

// JSON 统一的 jsoniter 配置实例
// 使用 ConfigCompatibleWithStandardLibrary 确保与标准库完全兼容，
// 所有队列消息、聚合记录、缓存值的序列化都走这个实例
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal 序列化对象为 JSON 字节数组
func Marshal(v interface{}) ([]byte, error) {
	return JSON.Marshal(v)
}

// Unmarshal 从 JSON 字节数组反序列化对象
func Unmarshal(data []byte, v interface{}) error {
	return JSON.Unmarshal(data, v)
}

// MarshalToString 将对象序列化为 JSON 字符串
func MarshalToString(v interface{}) (string, error) {
	return JSON.MarshalToString(v)
}

// UnmarshalFromString 从 JSON 字符串反序列化对象
func UnmarshalFromString(str string, v interface{}) error {
	return JSON.UnmarshalFromString(str, v)
}

// RawMessage jsoniter 兼容的 RawMessage 类型
type RawMessage = jsoniter.RawMessage
