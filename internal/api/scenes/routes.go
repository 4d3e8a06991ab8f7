package scenes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/scenyx-stage/internal/wire"
)

// RegisterSceneRoutes registers every stage route on r.
func RegisterSceneRoutes(r *mux.Router, h *SceneHandler) {
	r.Use(logRequests)

	r.HandleFunc("/get-scene-list", h.Operation(wire.MethodGetSceneList)).Methods(http.MethodGet)
	r.HandleFunc("/get-scene/{id:[0-9]+}", h.GetScene).Methods(http.MethodGet)
	r.HandleFunc("/get-current-scene", h.Operation(wire.MethodGetCurrentScene)).Methods(http.MethodGet)
	r.HandleFunc("/get-state", h.Operation(wire.MethodGetState)).Methods(http.MethodGet)

	post := map[string]string{
		"/update-current-scene":           wire.MethodUpdateCurrentScene,
		"/set-current-scene":              wire.MethodSetCurrentScene,
		"/set-scene":                      wire.MethodSetScene,
		"/set-fixture":                    wire.MethodSetFixture,
		"/create-scene":                   wire.MethodCreateScene,
		"/delete-scene":                   wire.MethodDeleteScene,
		"/create-fixture":                 wire.MethodCreateFixture,
		"/delete-fixture":                 wire.MethodDeleteFixture,
		"/add-fixtures-to-scene":          wire.MethodAddFixturesToScene,
		"/remove-all-fixtures-from-scene": wire.MethodRemoveAllFixturesFromScene,
	}
	for path, method := range post {
		r.HandleFunc(path, h.Operation(method)).Methods(http.MethodPost)
	}

	r.HandleFunc("/rpc", h.ServeRPC).Methods(http.MethodPost)
	if h.Hub != nil {
		r.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Infof("[Stage] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
