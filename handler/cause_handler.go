package handler

import (
	"lighthouse-api/common"
	"lighthouse-api/logger"
	"lighthouse-api/model"
	"lighthouse-api/service"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CauseHandler struct {
	service *service.CauseService
}

func NewCauseHandler(s *service.CauseService) *CauseHandler {
	return &CauseHandler{service: s}
}

func causeID(r *http.Request) (string, *common.AppError) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", common.NewAppError(http.StatusBadRequest, "Invalid cause ID in URL path", err)
	}
	return id, nil
}

// CreateCause godoc
// @Summary      Create a cause
// @Description  Accepts JSON or multipart/form-data. Image files are uploaded elsewhere; only their URLs are stored.
// @Tags         causes
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        cause body model.CreateCauseRequest true "Cause"
// @Success      201  {object}  model.Cause
// @Failure      400  {object}  common.AppError
// @Failure      403  {object}  common.AppError "Admin privileges required"
// @Router       /causes [post]
func (h *CauseHandler) CreateCause(w http.ResponseWriter, r *http.Request) *common.AppError {
	req, appErr := parseCreateCause(r)
	if appErr != nil {
		return appErr
	}

	logger.Log.WithFields(logrus.Fields{
		"title":    req.Title,
		"category": req.Category,
	}).Info("Create cause request received")

	cause, err := h.service.CreateCause(r.Context(), req)
	if err != nil {
		return serviceError(err, "Could not create cause")
	}

	common.WriteJSON(w, http.StatusCreated, cause)
	return nil
}

func (h *CauseHandler) ListCauses(w http.ResponseWriter, r *http.Request) *common.AppError {
	causes, err := h.service.ListCauses(r.Context())
	if err != nil {
		return serviceError(err, "Could not retrieve causes")
	}
	common.WriteJSON(w, http.StatusOK, causes)
	return nil
}

func (h *CauseHandler) GetCause(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := causeID(r)
	if appErr != nil {
		return appErr
	}
	cause, err := h.service.GetCause(r.Context(), id)
	if err != nil {
		return serviceError(err, "Could not retrieve cause")
	}
	common.WriteJSON(w, http.StatusOK, cause)
	return nil
}

// UpdateCause godoc
// @Summary      Partially update a cause
// @Tags         causes
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id    path string true "Cause ID"
// @Param        cause body model.UpdateCauseRequest true "Fields to change"
// @Success      200  {object}  model.Cause
// @Failure      400  {object}  common.AppError
// @Failure      404  {object}  common.AppError
// @Router       /causes/{id} [patch]
func (h *CauseHandler) UpdateCause(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := causeID(r)
	if appErr != nil {
		return appErr
	}
	req, appErr := parseUpdateCause(r)
	if appErr != nil {
		return appErr
	}

	cause, err := h.service.UpdateCause(r.Context(), id, req)
	if err != nil {
		return serviceError(err, "Could not update cause")
	}
	common.WriteJSON(w, http.StatusOK, cause)
	return nil
}

func (h *CauseHandler) DeleteCause(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := causeID(r)
	if appErr != nil {
		return appErr
	}
	if err := h.service.DeleteCause(r.Context(), id); err != nil {
		return serviceError(err, "Could not delete cause")
	}
	common.WriteJSON(w, http.StatusOK, model.MessageResponse{Message: "Cause deleted successfully"})
	return nil
}
