package util

import "encoding/json"

// MarshalString encodes v as a JSON string for string-valued stores.
func MarshalString(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalString decodes a JSON string produced by MarshalString.
func UnmarshalString[T any](s string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
