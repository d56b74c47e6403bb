// Package conv 提供从 map[string]any 形式的节点配置中读取强类型值的工具。
// YAML 解出的数字可能是 int 或 float64，JSON 解出的一律是 float64，这里统一处理。
package conv

import (
	"fmt"
	"time"
)

// ToFloat64 将 any 转为 float64，支持各类整数与浮点数。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

// ToInt 将 any 转为 int；带小数部分的浮点数视为无效。
func ToInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case uint64:
		return int(val), true
	case float64:
		if val != float64(int(val)) {
			return 0, false
		}
		return int(val), true
	default:
		return 0, false
	}
}

// ToStrings 将 []any / []string 转为 []string，元素必须都是字符串。
func ToStrings(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...), true
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// Float 读取可选的浮点配置项，缺失时返回 def。
func Float(config map[string]any, key string, def float64) (float64, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("%s: want number, got %T", key, v)
	}
	return f, nil
}

// Int 读取可选的整数配置项，缺失时返回 def。
func Int(config map[string]any, key string, def int) (int, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	i, ok := ToInt(v)
	if !ok {
		return 0, fmt.Errorf("%s: want integer, got %v", key, v)
	}
	return i, nil
}

// String 读取可选的字符串配置项，缺失时返回 def。
func String(config map[string]any, key, def string) (string, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: want string, got %T", key, v)
	}
	return s, nil
}

// Bool 读取可选的布尔配置项，缺失时返回 def。
func Bool(config map[string]any, key string, def bool) (bool, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: want bool, got %T", key, v)
	}
	return b, nil
}

// Strings 读取可选的字符串列表配置项。
func Strings(config map[string]any, key string) ([]string, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := ToStrings(v)
	if !ok {
		return nil, fmt.Errorf("%s: want list of strings, got %T", key, v)
	}
	return s, nil
}

// Duration 读取可选的时长配置项：字符串按 time.ParseDuration 解析（"500ms"），数字按毫秒处理。
func Duration(config map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	if s, ok := v.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	}
	ms, ok := ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("%s: want duration, got %T", key, v)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

// Maps 读取 map 列表配置项（例如 fanout 的 sources）。
func Maps(config map[string]any, key string) ([]map[string]any, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: want list, got %T", key, v)
	}
	out := make([]map[string]any, 0, len(list))
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: want map, got %T", key, i, e)
		}
		out = append(out, m)
	}
	return out, nil
}
