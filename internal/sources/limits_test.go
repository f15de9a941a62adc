package sources

import (
	"errors"
	"testing"
)

func TestMeasure(t *testing.T) {
	sheet := []byte("이름,학교\n김철수,서울초\n이영희,휘문고\n,\n박민수,대치중\n")

	tests := []struct {
		name    string
		data    []byte
		maxRows int
		want    int
		wantErr error
	}{
		{"unbounded", sheet, 0, 3, nil},
		{"at limit", sheet, 3, 3, nil},
		{"over limit", sheet, 2, 0, ErrTooManyRows},
		{"header only", []byte("이름,학교\n"), 10, 0, ErrEmptySheet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, _, err := measure(tt.data, tt.maxRows)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if rows != tt.want {
				t.Errorf("rows = %d, want %d", rows, tt.want)
			}
		})
	}
}
