package vectorstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid simple", input: "log_file_errors"},
		{name: "valid with digits", input: "errors_2024"},
		{name: "empty", input: "", wantErr: true},
		{name: "uppercase", input: "LogFileErrors", wantErr: true},
		{name: "spaces", input: "log file errors", wantErr: true},
		{name: "path traversal", input: "../etc/passwd", wantErr: true},
		{name: "hyphen", input: "log-file-errors", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 65), wantErr: true},
		{name: "max length", input: strings.Repeat("a", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
