package gateway

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// serverMessage extracts a human readable message and an optional machine code from an error body.
// Recognized shapes, in order: {"message"}, {"detail"}, {"error":{"message","code"}}, {"error":"..."},
// then the first field error of a {"field":["msg"]} map.
func serverMessage(body []byte) (code, message string) {
	var doc map[string]json.RawMessage
	if len(body) == 0 || json.Unmarshal(body, &doc) != nil {
		return "", ""
	}
	if s, ok := rawString(doc["message"]); ok && s != "" {
		return rawCode(doc["code"]), s
	}
	if s, ok := rawString(doc["detail"]); ok && s != "" {
		return rawCode(doc["code"]), s
	}
	if raw, ok := doc["error"]; ok {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
			return nested.Code, nested.Message
		}
		if s, ok := rawString(raw); ok && s != "" {
			return rawCode(doc["code"]), s
		}
	}
	return "", firstFieldError(doc)
}

func firstFieldError(doc map[string]json.RawMessage) string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var list []string
		if json.Unmarshal(doc[k], &list) == nil && len(list) > 0 && list[0] != "" {
			if k == "non_field_errors" {
				return list[0]
			}
			return fmt.Sprintf("%s: %s", k, list[0])
		}
	}
	return ""
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func rawCode(raw json.RawMessage) string {
	s, _ := rawString(raw)
	return s
}
