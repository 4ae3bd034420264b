package models

import (
	"encoding/json"
	"fmt"
)

func marshalPair(a, b string) ([]byte, error) {
	return json.Marshal([2]string{a, b})
}

func unmarshalPair(data []byte) (string, string, error) {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", "", err
	}
	switch len(raw) {
	case 1:
		return raw[0], "", nil
	case 2:
		return raw[0], raw[1], nil
	default:
		return "", "", fmt.Errorf("models: recipe line has %d elements, want 2", len(raw))
	}
}
