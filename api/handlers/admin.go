package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/seanlongden/lead-formatter-waitlist/api"
	"github.com/seanlongden/lead-formatter-waitlist/config"
	"github.com/seanlongden/lead-formatter-waitlist/waitlist"
)

// Admin exported for testing purposes
type Admin struct {
	Service *waitlist.Service
}

// UsersHandler returns a page of waitlist users with the overall counters
func (a Admin) UsersHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	// unparsable numbers fall back to the defaults
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	users, err := a.Service.AdminUsers(ctx, waitlist.AdminUsersQuery{
		Page:  page,
		Limit: limit,
		Sort:  query.Get("sort"),
	})
	if err != nil {
		writeServiceError(w, err, "Failed to load users")
		return
	}
	config.WriteJSON(w, http.StatusOK, users)
}

// ExportHandler streams every verified user as a CSV attachment
func (a Admin) ExportHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	var buf bytes.Buffer
	if err := a.Service.Export(ctx, &buf); err != nil {
		config.ErrorStatus("Failed to export", http.StatusInternalServerError, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=waitlist-export.csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
