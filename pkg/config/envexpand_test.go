package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "base_url: {{.ORACLE_URL}}",
			env:   map[string]string{"ORACLE_URL": "http://oracle:9090"},
			want:  "base_url: http://oracle:9090",
		},
		{
			name:  "literal dollar survives",
			input: "pattern: launcher$",
			want:  "pattern: launcher$",
		},
		{
			name:  "missing variable expands to empty",
			input: "token: {{.NOT_SET_ANYWHERE_XYZ}}",
			want:  "token: ",
		},
		{
			name:  "multiple substitutions",
			input: "url: {{.PROTO}}://{{.HOST}}",
			env:   map[string]string{"PROTO": "ws", "HOST": "oracle"},
			want:  "url: ws://oracle",
		},
		{
			name:  "malformed template passes through",
			input: "value: {{.unclosed",
			want:  "value: {{.unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, string(expandEnv([]byte(tt.input))))
		})
	}
}
