// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package sso

import (
	"encoding/json"
	"strconv"
	"strings"
)

// lookup walks a dotted path such as "user.id" through nested JSON objects.
// Numbers are rendered without an exponent so numeric IDs survive.
func lookup(doc map[string]any, path string) string {
	if path == "" {
		return ""
	}
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[part]
	}
	switch v := cur.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
