// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromSameOrigin(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   bool
	}{
		{name: "no browser headers", want: true},
		{name: "fetch same-origin", header: http.Header{"Sec-Fetch-Site": {"same-origin"}}, want: true},
		{name: "fetch typed by the user", header: http.Header{"Sec-Fetch-Site": {"none"}}, want: true},
		{name: "fetch cross-site", header: http.Header{"Sec-Fetch-Site": {"cross-site"}}, want: false},
		{name: "fetch same-site sibling", header: http.Header{"Sec-Fetch-Site": {"same-site"}}, want: false},
		{name: "matching origin", header: http.Header{"Origin": {"http://gate.test"}}, want: true},
		{name: "origin host case", header: http.Header{"Origin": {"http://GATE.test"}}, want: true},
		{name: "foreign origin", header: http.Header{"Origin": {"https://evil.example"}}, want: false},
		{name: "opaque origin", header: http.Header{"Origin": {"null"}}, want: false},
		{name: "matching referer", header: http.Header{"Referer": {"http://gate.test/rooms"}}, want: true},
		{name: "foreign referer", header: http.Header{"Referer": {"https://evil.example/x"}}, want: false},
		{
			name:   "origin wins over referer",
			header: http.Header{"Origin": {"https://evil.example"}, "Referer": {"http://gate.test/rooms"}},
			want:   false,
		},
		{
			name:   "fetch metadata wins over origin",
			header: http.Header{"Sec-Fetch-Site": {"cross-site"}, "Origin": {"http://gate.test"}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://gate.test/rooms", nil)
			for k, v := range tt.header {
				req.Header[k] = v
			}
			assert.Equal(t, tt.want, fromSameOrigin(req))
		})
	}
}
