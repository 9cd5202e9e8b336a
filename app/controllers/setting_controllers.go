package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/store"
	"github.com/rmoraes/braseiro/pkg/bind"
	"github.com/rmoraes/braseiro/pkg/response"
)

type SettingController struct {
	storage *store.Manager
}

func NewSettingController(storage *store.Manager) *SettingController {
	return &SettingController{storage: storage}
}

// Index lists settings. The emergency snapshot slot is internal state
// and never surfaces here.
func (c *SettingController) Index(w http.ResponseWriter, r *http.Request) {
	settings, err := c.storage.ListSettings(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	delete(settings, models.SettingEmergencySnapshot)
	response.Success(w, settings)
}

// Show returns one setting by key.
func (c *SettingController) Show(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == models.SettingEmergencySnapshot {
		response.NotFound(w, "setting not found")
		return
	}

	val, found, err := c.storage.GetSetting(r.Context(), key)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		response.NotFound(w, "setting not found")
		return
	}
	response.Success(w, map[string]string{"key": key, "value": val})
}

type settingInput struct {
	Value string `json:"value" validate:"required,max=4096"`
}

// Update upserts one setting. The reserved keys that drive migration and
// recovery are not writable from outside.
func (c *SettingController) Update(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	switch key {
	case models.SettingEmergencySnapshot, models.SettingMigrationCompleted:
		response.Error(w, http.StatusForbidden, "reserved setting")
		return
	}

	var in settingInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := c.storage.SetSetting(r.Context(), key, in.Value); err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(w, map[string]string{"key": key, "value": in.Value})
}
