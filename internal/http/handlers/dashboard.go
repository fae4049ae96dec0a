package handlers

import (
	"net/http"

	"github.com/roadcams/conditions-dashboard/internal/dashboard"
)

// Dashboard returns one view of the current snapshot for the query criteria.
func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	criteria, mode := dashboard.ParseCriteria(r.URL.Query())
	writeJSON(w, http.StatusOK, dashboard.Build(a.source.State(), criteria, mode))
}
