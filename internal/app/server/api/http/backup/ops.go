package backup

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) putOp() huma.Operation {
	return huma.Operation{
		OperationID: "backups-put",
		Method:      http.MethodPut,
		Path:        "/api/v1/backups/{id}",
		Summary:     "Сохранить резервную копию устройства",
		Description: "Контрольная сумма проверяется до сохранения. Старые копии вытесняются по лимиту хранения.",
		Tags:        []string{"backups"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "backups-find",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups/{id}",
		Summary:     "Получить резервную копию с содержимым",
		Tags:        []string{"backups"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "backups-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups",
		Summary:     "Список резервных копий устройства",
		Tags:        []string{"backups"},
		Middlewares: h.middleware,
	}
}
