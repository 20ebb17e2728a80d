package snapshot

import (
	"encoding/json"

	"scoutsync/internal/domain/snapshot"
)

type keyInput struct {
	Type string `path:"type" example:"structure" doc:"Тип сущности" minLength:"1" maxLength:"64"`
	ID   string `path:"id" example:"base-42" doc:"ID сущности" minLength:"1" maxLength:"256"`
}

type getOutput struct {
	Body snapshot.Snapshot
}

type putInput struct {
	Type string `path:"type" example:"structure" doc:"Тип сущности" minLength:"1" maxLength:"64"`
	ID   string `path:"id" example:"base-42" doc:"ID сущности" minLength:"1" maxLength:"256"`
	Body putRequest
}

type putRequest struct {
	Payload         json.RawMessage `json:"payload" doc:"Новое содержимое сущности, JSON-объект"`
	ExpectedVersion int64           `json:"expected_version" minimum:"0" doc:"Версия, на которой основано изменение; 0 для новой сущности"`
}

type deleteInput struct {
	Type            string `path:"type" example:"structure" doc:"Тип сущности" minLength:"1" maxLength:"64"`
	ID              string `path:"id" example:"base-42" doc:"ID сущности" minLength:"1" maxLength:"256"`
	ExpectedVersion int64  `query:"expected_version" minimum:"0" doc:"Версия, на которой основано удаление"`
}

type writeOutput struct {
	Body snapshot.PutResult
}
