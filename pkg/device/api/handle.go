package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/device"
	"github.com/tendant/simple-recovery/pkg/errors"
	"github.com/tendant/simple-recovery/pkg/response"
)

// DeviceHandler handles HTTP requests for trusted device management
type DeviceHandler struct {
	deviceService *device.DeviceService
}

func NewDeviceHandler(deviceService *device.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
	}
}

// TrustDeviceRequest represents the request body for trusting the current device
type TrustDeviceRequest struct {
	Name    string `json:"name"`
	TTLDays int    `json:"ttlDays"`
}

// DeviceResponse is a trusted device as returned to its owner. The
// fingerprint stays server side.
type DeviceResponse struct {
	ID         uuid.UUID `json:"id"`
	DeviceName string    `json:"deviceName"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
	Expired    bool      `json:"expired"`
}

// RemoveAllResponse reports how many devices were removed
type RemoveAllResponse struct {
	Removed int `json:"removed"`
}

func toDeviceResponse(d device.TrustedDevice) DeviceResponse {
	var resp DeviceResponse
	if err := copier.Copy(&resp, &d); err != nil {
		slog.Warn("Failed to copy device response", "device_id", d.ID, "error", err)
	}
	return resp
}

// TrustDevice handles POST /trust
func (h *DeviceHandler) TrustDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req TrustDeviceRequest
	if r.ContentLength != 0 {
		if err := response.Decode(r, &req); err != nil {
			response.Error(w, r, err)
			return
		}
	}

	d, err := h.deviceService.Trust(r.Context(), userID, client.FromRequest(r), req.Name, req.TTLDays)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, r, toDeviceResponse(d))
}

// CheckDevice handles GET /check
func (h *DeviceHandler) CheckDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	status, err := h.deviceService.IsTrusted(r.Context(), userID, client.FromRequest(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, status)
}

// ListDevices handles GET /
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	devices, err := h.deviceService.ListDevices(r.Context(), userID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	resp := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, toDeviceResponse(d))
	}
	response.OK(w, r, resp)
}

// RemoveDevice handles DELETE /{id}
func (h *DeviceHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	deviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, errors.Validation("id", "must be a UUID"))
		return
	}

	if err := h.deviceService.RemoveDevice(r.Context(), deviceID, userID, client.FromRequest(r)); err != nil {
		response.Error(w, r, err)
		return
	}
	response.Message(w, r, "Device removed", nil)
}

// RemoveAllDevices handles DELETE /
func (h *DeviceHandler) RemoveAllDevices(w http.ResponseWriter, r *http.Request) {
	userID, err := client.RequireUserID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	count, err := h.deviceService.RemoveAllDevices(r.Context(), userID, client.FromRequest(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Message(w, r, "All devices removed", RemoveAllResponse{Removed: count})
}

// Handler returns the device routes. Authentication middleware must run first.
func Handler(h *DeviceHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListDevices)
	r.Delete("/", h.RemoveAllDevices)
	r.Post("/trust", h.TrustDevice)
	r.Get("/check", h.CheckDevice)
	r.Delete("/{id}", h.RemoveDevice)

	return r
}
