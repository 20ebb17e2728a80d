package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHandler_healthCheck(t *testing.T) {
	tests := []struct {
		name           string
		storage        Pinger
		expectedStatus string
		expectedCode   int
	}{
		{
			name:           "health check returns OK without storage",
			expectedStatus: "OK",
		},
		{
			name:           "health check returns OK with reachable storage",
			storage:        stubPinger{},
			expectedStatus: "OK",
		},
		{
			name:         "unreachable storage is reported as unavailable",
			storage:      stubPinger{err: errors.New("connection refused")},
			expectedCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			handler := NewHandler(tt.storage, slog.Default(), huma.Middlewares{})

			// Act
			output, err := handler.healthCheck(context.Background(), &Input{})

			// Assert
			if tt.expectedCode != 0 {
				var se huma.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.expectedCode, se.GetStatus())
				return
			}
			assert.NoError(t, err)
			require.NotNil(t, output)
			assert.Equal(t, tt.expectedStatus, output.Body.Status)
		})
	}
}

func TestNewHandler(t *testing.T) {
	handler := NewHandler(nil, slog.Default(), huma.Middlewares{})

	assert.NotNil(t, handler)
	assert.NotNil(t, handler.log)
	assert.NotNil(t, handler.middleware)
}
