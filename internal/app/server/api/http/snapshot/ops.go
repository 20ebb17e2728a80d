package snapshot

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) getOp() huma.Operation {
	return huma.Operation{
		OperationID: "snapshots-get",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots/{type}/{id}",
		Summary:     "Текущий снимок сущности",
		Description: "Возвращает 404, если сущность никогда не создавалась. Удаленная сущность возвращается как tombstone.",
		Tags:        []string{"snapshots"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) putOp() huma.Operation {
	return huma.Operation{
		OperationID: "snapshots-put",
		Method:      http.MethodPut,
		Path:        "/api/v1/snapshots/{type}/{id}",
		Summary:     "Условная запись сущности",
		Description: "Запись принимается, только если expected_version совпадает с текущей версией. При отказе возвращается текущая версия.",
		Tags:        []string{"snapshots"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID: "snapshots-delete",
		Method:      http.MethodDelete,
		Path:        "/api/v1/snapshots/{type}/{id}",
		Summary:     "Условное удаление сущности",
		Tags:        []string{"snapshots"},
		Middlewares: h.middleware,
	}
}
