package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-doctree-migrate/validate"
)

type sample struct {
	Size       string `mapstructure:"batch-max-size" validate:"bytesize,bytesizemin=1KB,bytesizemax=1MiB"`
	Collection string `mapstructure:"collection" validate:"omitempty,collpath"`
	Workers    int    `mapstructure:"workers" validate:"gte=1,lte=8"`
	Untagged   string `validate:"required"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	valid := sample{Size: "64KB", Collection: "users/u1/orders", Workers: 2, Untagged: "x"}

	tests := []struct {
		name    string
		modify  func(*sample)
		wantErr string
	}{
		{name: "valid", modify: func(*sample) {}},
		{name: "empty size", modify: func(s *sample) { s.Size = "" }},
		{
			name:    "bad size",
			modify:  func(s *sample) { s.Size = "big" },
			wantErr: "batch-max-size: must be a valid byte size",
		},
		{
			name:    "size below min",
			modify:  func(s *sample) { s.Size = "10B" },
			wantErr: "batch-max-size: must be at least 1KB",
		},
		{
			name:    "size above max",
			modify:  func(s *sample) { s.Size = "2MiB" },
			wantErr: "batch-max-size: must be at most 1MiB",
		},
		{
			name:    "document path",
			modify:  func(s *sample) { s.Collection = "users/u1" },
			wantErr: "collection: must be a collection path",
		},
		{
			name:    "workers out of range",
			modify:  func(s *sample) { s.Workers = 9 },
			wantErr: "workers: must be at most 8",
		},
		{
			name:    "field name fallback",
			modify:  func(s *sample) { s.Untagged = "" },
			wantErr: "Untagged: is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := valid
			tt.modify(&s)

			err := validate.Struct(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var verrs validate.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Len(t, verrs, 1)
		})
	}
}
