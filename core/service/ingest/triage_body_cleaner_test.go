package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanBody(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain text untouched",
			raw:  "Can we meet tomorrow at 2pm?",
			want: "Can we meet tomorrow at 2pm?",
		},
		{
			name: "quoted reply lines removed",
			raw:  "Sounds good.\n> When works for you?\n> Thursday?",
			want: "Sounds good.",
		},
		{
			name: "reply header cuts the rest",
			raw:  "Works for me.\nOn Mon, Jun 2, 2025 at 9:00 AM Alice <alice@example.com> wrote:\nold text here",
			want: "Works for me.",
		},
		{
			name: "forward header cuts the rest",
			raw:  "FYI, see below.\nBegin forwarded message:\nFrom: Carol <carol@example.com>\noriginal text",
			want: "FYI, see below.",
		},
		{
			name: "signature stripped",
			raw:  "See attached.\n--\nBob Jones\nVP of Sales",
			want: "See attached.",
		},
		{
			name: "horizontal rule ends the body",
			raw:  "Final answer below.\n---\nquoted original follows",
			want: "Final answer below.",
		},
		{
			name: "html tags stripped",
			raw:  "<div><p>Hello <b>there</b></p></div>",
			want: "Hello there",
		},
		{
			name: "urls removed",
			raw:  "Check https://example.com/very/long/path?q=1 for details",
			want: "Check for details",
		},
		{
			name: "whitespace collapsed",
			raw:  "a    b\n\n\n\n\nc",
			want: "a b\n\nc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanBody(tt.raw))
		})
	}
}
