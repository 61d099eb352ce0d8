package handlers

import (
	"net/http"

	"github.com/pacemates/paceline/pkg"

	"github.com/gorilla/mux"
)

type MiscHandler struct {
	versionInfo string
}

func NewMiscHandler(versionInfo string) *MiscHandler {
	return &MiscHandler{
		versionInfo: versionInfo,
	}
}

func (handler *MiscHandler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET", "POST", "OPTIONS").Name("root")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")
}

func (handler *MiscHandler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (handler *MiscHandler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}
