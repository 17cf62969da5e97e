package yamlutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/alnah/go-bookdl/internal/yamlutil"
)

type fetchSection struct {
	Workers  int    `yaml:"workers"`
	Delay    string `yaml:"delay"`
	Disabled bool   `yaml:"disabled"`
}

func TestUnmarshalStrict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		data       []byte
		dest       any
		wantErr    error
		wantPrefix string
	}{
		{
			name: "valid document",
			data: []byte("workers: 4\ndelay: 500ms\n"),
			dest: &fetchSection{},
		},
		{
			name:    "nil data",
			data:    nil,
			dest:    &fetchSection{},
			wantErr: yamlutil.ErrNilData,
		},
		{
			name:    "nil destination",
			data:    []byte("workers: 1"),
			dest:    nil,
			wantErr: yamlutil.ErrNilDestination,
		},
		{
			name:       "syntax error",
			data:       []byte("workers: [1"),
			dest:       &fetchSection{},
			wantPrefix: "yamlutil:",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := yamlutil.UnmarshalStrict(tt.data, tt.dest)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("UnmarshalStrict() error = %v, want %v", err, tt.wantErr)
				}
			case tt.wantPrefix != "":
				if err == nil || !strings.HasPrefix(err.Error(), tt.wantPrefix) {
					t.Fatalf("UnmarshalStrict() error = %v, want prefix %q", err, tt.wantPrefix)
				}
			default:
				if err != nil {
					t.Fatalf("UnmarshalStrict() unexpected error: %v", err)
				}
				got := tt.dest.(*fetchSection)
				if got.Workers != 4 {
					t.Errorf("Workers = %d, want 4", got.Workers)
				}
			}
		})
	}
}

func TestUnmarshalStrict_RejectsUnknownField(t *testing.T) {
	t.Parallel()

	var dst fetchSection
	err := yamlutil.UnmarshalStrict([]byte("workers: 2\nworkres: 3\n"), &dst)
	if err == nil {
		t.Fatal("UnmarshalStrict() expected error for unknown field")
	}
}

func TestUnmarshalStrict_TooLarge(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat("#", yamlutil.MaxInputSize+1))
	var dst fetchSection
	if err := yamlutil.UnmarshalStrict(data, &dst); !errors.Is(err, yamlutil.ErrInputTooLarge) {
		t.Fatalf("UnmarshalStrict() error = %v, want ErrInputTooLarge", err)
	}
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	out, err := yamlutil.Marshal(fetchSection{Workers: 3, Delay: "1s"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "workers: 3") || !strings.Contains(s, "delay: 1s") {
		t.Errorf("Marshal() = %q, missing fields", s)
	}
}
