package main

import (
	"net/http"

	"casinodir/internal/directory"
)

type HealthResponse struct {
	Status  string                           `json:"status"`
	Env     string                           `json:"env"`
	Version string                           `json:"version"`
	Tables  map[string]directory.TableHealth `json:"tables"`
}

// healthCheckHandler godoc
//
//	@Summary		Health check
//	@Description	Row counts per table; 503 when the entries table cannot be read
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	h := app.dir.Health(r.Context())

	status := http.StatusOK
	if !h.Healthy() {
		status = http.StatusServiceUnavailable
	}

	app.jsonResponse(w, status, HealthResponse{
		Status:  h.Status,
		Env:     app.config.Env,
		Version: version,
		Tables:  h.Tables,
	})
}
