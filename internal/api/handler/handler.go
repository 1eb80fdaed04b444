package handler

import (
	"unichat/backend/internal/matchhub"
	"unichat/backend/internal/storage"
)

// Handler carries the dependencies of the HTTP surface.
type Handler struct {
	Hub       *matchhub.ManagerService
	Storage   storage.Storage
	JWTSecret []byte
}

// NewHandler constructs the handler.
func NewHandler(hub *matchhub.ManagerService, s storage.Storage, jwtSecret string) *Handler {
	return &Handler{Hub: hub, Storage: s, JWTSecret: []byte(jwtSecret)}
}
