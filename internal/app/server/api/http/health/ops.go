package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// healthCheckOp клиенты используют этот endpoint как сигнал доступности сервера
func (h *Handler) healthCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Server and storage availability",
		Description: "Returns 200 when the server can reach its snapshot storage, 503 otherwise. " +
			"Sync clients poll it to detect offline to online transitions.",
		Tags: []string{"health"},
		Errors: []int{
			http.StatusServiceUnavailable,
		},
		Middlewares: h.middleware,
	}
}
