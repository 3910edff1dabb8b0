package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/ofirc298/GUIDESSITE2025/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: fmt.Errorf("lookup: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "app conflict", err: apperrors.Conflict("dup"), want: "conflict"},
		{
			name: "internal app error falls through to cause",
			err:  apperrors.Wrap(&pgconn.PgError{Code: "XX000"}, apperrors.ErrCodeInternal, "db"),
			want: "pgconn_pgerror",
		},
		{name: "plain", err: fmt.Errorf("wrap: %w", goerrors.New("x")), want: "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
