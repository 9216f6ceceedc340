package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p := NewHTMLParser()

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "empty",
			html: "  ",
			want: "",
		},
		{
			name: "blocks become lines",
			html: `<html><head><title>x</title><style>p{}</style></head><body>
				<p>Hello   <b>team</b>,</p><div>#SBS: Atlas</div><br><ul><li>one</li><li>two</li></ul>
				<script>alert(1)</script></body></html>`,
			want: "Hello team,\n#SBS: Atlas\none\ntwo",
		},
		{
			name: "invisible characters",
			html: "<p>Zero\u200bwidth\ufeff text</p>",
			want: "Zerowidth text",
		},
		{
			name: "mailto address kept",
			html: `<p>Ask <a href="mailto:alice@foo.com?subject=hi">Alice</a> or <a href="mailto:bob@bar.com">bob@bar.com</a></p>`,
			want: "Ask Alice <alice@foo.com> or bob@bar.com",
		},
		{
			name: "images dropped",
			html: `<div><img src="cid:image001.png@01D" alt="logo">Regards</div>`,
			want: "Regards",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
