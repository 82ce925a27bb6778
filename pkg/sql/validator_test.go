package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "plain select",
			input: "SELECT name FROM Player",
			want:  "SELECT name FROM Player",
		},
		{
			name:  "trailing semicolon stripped",
			input: "SELECT name FROM Player;",
			want:  "SELECT name FROM Player",
		},
		{
			name:  "trailing semicolon with whitespace",
			input: "SELECT name FROM Player ;  \n",
			want:  "SELECT name FROM Player",
		},
		{
			name:  "with cte",
			input: "WITH t AS (SELECT 1) SELECT * FROM t",
			want:  "WITH t AS (SELECT 1) SELECT * FROM t",
		},
		{
			name:  "semicolon inside string literal allowed",
			input: "SELECT * FROM Player WHERE name = 'a;b'",
			want:  "SELECT * FROM Player WHERE name = 'a;b'",
		},
		{
			name:    "multiple statements rejected",
			input:   "SELECT 1; SELECT 2",
			wantErr: ErrMultipleStatements,
		},
		{
			name:    "dml rejected",
			input:   "DELETE FROM Player",
			wantErr: ErrNotReadOnly,
		},
		{
			name:    "ddl rejected",
			input:   "DROP TABLE Player",
			wantErr: ErrNotReadOnly,
		},
		{
			name:    "empty rejected",
			input:   "   ",
			wantErr: ErrEmptyStatement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateAndNormalize(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, result.Error, tt.wantErr)
				return
			}
			require.NoError(t, result.Error)
			assert.Equal(t, tt.want, result.NormalizedSQL)
		})
	}
}

func TestCheckFragmentForInjection(t *testing.T) {
	assert.Nil(t, CheckFragmentForInjection("Barcelona"))
	assert.Nil(t, CheckFragmentForInjection("Lionel Messi"))

	result := CheckFragmentForInjection("'; DROP TABLE users--")
	require.NotNil(t, result)
	assert.True(t, result.IsSQLi)
	assert.NotEmpty(t, result.Fingerprint)
}
