package handlers

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"pi360-service/internal/adapters/export"
	"pi360-service/internal/api/dto"
	"pi360-service/internal/domain"
	"pi360-service/internal/services"
	"strconv"
	"strings"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Locator interface {
	Locate(ctx context.Context, req services.LocateRequest) (*services.LocateResult, error)
}

// LocationHandler serves the ranked facility view and its spreadsheet export.
type LocationHandler struct {
	Locator       Locator
	DefaultPolicy domain.ProximityPolicy
}

// parseLocateRequest reads address, lat/lng, radius, max and selected from
// the query string. Missing radius/max fall back to the default policy;
// max=0 lifts the cap.
func (h *LocationHandler) parseLocateRequest(q url.Values) (services.LocateRequest, error) {
	req := services.LocateRequest{
		Address:    strings.TrimSpace(q.Get("address")),
		Policy:     h.DefaultPolicy,
		SelectedID: strings.TrimSpace(q.Get("selected")),
	}

	latStr, lngStr := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	if (latStr == "") != (lngStr == "") {
		return req, fmt.Errorf("%w: lat and lng must be given together", domain.ErrInvalidPoint)
	}
	if latStr != "" {
		lat, err1 := strconv.ParseFloat(latStr, 64)
		lng, err2 := strconv.ParseFloat(lngStr, 64)
		if err1 != nil || err2 != nil {
			return req, fmt.Errorf("%w: lat and lng must be numbers", domain.ErrInvalidPoint)
		}
		req.Point = &domain.GeoPoint{Latitude: lat, Longitude: lng}
	}

	if s := strings.TrimSpace(q.Get("radius")); s != "" {
		radius, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return req, fmt.Errorf("%w: radius must be a number", domain.ErrInvalidPolicy)
		}
		req.Policy.RadiusMiles = radius
	}

	if s := strings.TrimSpace(q.Get("max")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return req, fmt.Errorf("%w: max must be a non-negative integer", domain.ErrInvalidPolicy)
		}
		req.Policy = domain.NewProximityPolicy(req.Policy.RadiusMiles, n)
	}

	return req, nil
}

func (h *LocationHandler) locate(w http.ResponseWriter, r *http.Request) (*services.LocateResult, bool) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return nil, false
	}

	req, err := h.parseLocateRequest(r.URL.Query())
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return nil, false
	}

	res, err := h.Locator.Locate(r.Context(), req)
	if err != nil {
		writeFailure(w, r, "locate", err)
		return nil, false
	}
	return res, true
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	res, ok := h.locate(w, r)
	if !ok {
		return
	}

	out := dto.ListLocationsResponse{
		Locations:  make([]dto.LocationResponse, 0, len(res.Facilities)),
		SelectedID: res.SelectedID,
		Issues:     make([]dto.CoordinateIssueResponse, 0, len(res.Issues)),
	}
	if res.Reference != nil {
		out.Reference = &dto.PointResponse{Latitude: res.Reference.Latitude, Longitude: res.Reference.Longitude}
	}

	for i, row := range services.TableRows(res.Facilities) {
		out.Locations = append(out.Locations, dto.LocationResponse{
			Rank:          row.Rank,
			ID:            row.ID,
			Name:          row.Name,
			Address:       row.Address,
			Specialties:   res.Facilities[i].Specialties,
			Latitude:      finite(row.Latitude),
			Longitude:     finite(row.Longitude),
			DistanceMiles: row.DistanceMiles,
			DistanceLabel: row.DistanceLabel,
		})
	}
	for _, is := range res.Issues {
		out.Issues = append(out.Issues, dto.CoordinateIssueResponse{
			FacilityID: is.FacilityID,
			Name:       is.Name,
			Reason:     is.Reason,
		})
	}

	WriteJSON(w, r, http.StatusOK, out)
}

func (h *LocationHandler) Export(w http.ResponseWriter, r *http.Request) {
	res, ok := h.locate(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, res.Reference, services.TableRows(res.Facilities)); err != nil {
		writeFailure(w, r, "export locations", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="locations.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// JSON has no NaN.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
