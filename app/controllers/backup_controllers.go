package controllers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/config"
	"github.com/rmoraes/braseiro/internal/backup"
	"github.com/rmoraes/braseiro/internal/cart"
	"github.com/rmoraes/braseiro/internal/store"
	"github.com/rmoraes/braseiro/pkg/archive"
	"github.com/rmoraes/braseiro/pkg/cache"
	"github.com/rmoraes/braseiro/pkg/logger"
	"github.com/rmoraes/braseiro/pkg/response"
)

// maxEnvelopeBytes caps an uploaded backup file (32 MB).
const maxEnvelopeBytes = 32 << 20

type BackupController struct {
	engine  *backup.Engine
	storage *store.Manager
	cart    *cart.Model
}

func NewBackupController(engine *backup.Engine, storage *store.Manager, model *cart.Model) *BackupController {
	return &BackupController{engine: engine, storage: storage, cart: model}
}

// Export serializes the full dataset, archives a copy on the configured
// disk, and streams the envelope as a downloadable JSON file.
func (c *BackupController) Export(w http.ResponseWriter, r *http.Request) {
	env, err := c.engine.Export(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, err := backup.Encode(env)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := backup.Filename(config.Brand(), time.Now())
	if err := archive.Put(config.BackupDir()+"/"+name, data); err != nil {
		// The download still succeeds; the archive copy is best-effort.
		logger.WithCtx(r.Context()).Warn("backup not archived", "file", name, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// Preview decodes an uploaded envelope and returns its summary without
// touching any data. The client shows this to the operator before the
// destructive restore call.
func (c *BackupController) Preview(w http.ResponseWriter, r *http.Request) {
	env, ok := c.readEnvelope(w, r)
	if !ok {
		return
	}
	response.Success(w, backup.Preview(env))
}

// Restore replaces the dataset with an uploaded envelope.
func (c *BackupController) Restore(w http.ResponseWriter, r *http.Request) {
	env, ok := c.readEnvelope(w, r)
	if !ok {
		return
	}

	report, err := c.engine.Restore(r.Context(), env)
	c.resyncCart(r)
	c.writeRestoreOutcome(w, report, err)
}

// Recover re-applies the emergency snapshot taken before the last
// destructive operation.
func (c *BackupController) Recover(w http.ResponseWriter, r *http.Request) {
	report, err := c.engine.Recover(r.Context())
	if err != nil && report == nil {
		if errors.Is(err, backup.ErrNoSnapshot) {
			response.NotFound(w, err.Error())
			return
		}
		writeBackupError(w, err)
		return
	}
	c.resyncCart(r)
	c.writeRestoreOutcome(w, report, err)
}

// ClearAll wipes order history and the cart after snapshotting.
func (c *BackupController) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := c.engine.ClearAll(r.Context()); err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.resyncCart(r)
	response.Success(w, map[string]string{"status": "cleared"})
}

// Stats summarizes the full order history.
func (c *BackupController) Stats(w http.ResponseWriter, r *http.Request) {
	orders, err := c.storage.QueryOrders(r.Context(), store.OrderFilter{})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(w, backup.ComputeStats(orders))
}

func (c *BackupController) readEnvelope(w http.ResponseWriter, r *http.Request) (*models.BackupEnvelope, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEnvelopeBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "unreadable request body")
		return nil, false
	}

	env, err := backup.Decode(data)
	if err != nil {
		writeBackupError(w, err)
		return nil, false
	}
	return env, true
}

// resyncCart reloads persisted state into the in-memory cart model after
// the dataset changed underneath it.
func (c *BackupController) resyncCart(r *http.Request) {
	cache.Del(productsCacheKey) //nolint:errcheck
	if err := c.cart.Hydrate(r.Context()); err != nil {
		logger.WithCtx(r.Context()).Warn("cart not rehydrated after restore", "error", err)
	}
}

func (c *BackupController) writeRestoreOutcome(w http.ResponseWriter, report *backup.RestoreReport, err error) {
	if err == nil {
		response.Success(w, report)
		return
	}
	var partial *backup.PartialImportError
	if errors.As(err, &partial) {
		response.ErrorWithData(w, http.StatusMultiStatus, err.Error(), partial.Report)
		return
	}
	writeBackupError(w, err)
}

// writeBackupError maps engine errors onto HTTP statuses.
func writeBackupError(w http.ResponseWriter, err error) {
	var (
		invalid *backup.ValidationError
		version *backup.IncompatibleVersionError
	)
	switch {
	case errors.As(err, &version):
		response.Error(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalid):
		response.Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		response.Error(w, http.StatusInternalServerError, err.Error())
	}
}
