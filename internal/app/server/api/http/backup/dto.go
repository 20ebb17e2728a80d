package backup

import (
	"scoutsync/internal/domain/backup"
)

type putInput struct {
	ID   string `path:"id" doc:"ID резервной копии" minLength:"1" maxLength:"64"`
	Body backup.Snapshot
}

type putOutput struct {
	Body response
}

type findInput struct {
	ID string `path:"id" doc:"ID резервной копии" minLength:"1" maxLength:"64"`
}

type findOutput struct {
	Body backup.Snapshot
}

type listOutput struct {
	Body listResponse
}

type response struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type listResponse struct {
	Backups []backup.Snapshot `json:"backups"`
}
