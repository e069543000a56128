package handler

import (
	"lighthouse-api/common"
	"lighthouse-api/model"
	"lighthouse-api/service"
	"net/http"
)

// DonationHandler holds dependencies for donation-related handlers.
type DonationHandler struct {
	service *service.DonationService
}

func NewDonationHandler(s *service.DonationService) *DonationHandler {
	return &DonationHandler{service: s}
}

// CreateDonation godoc
// @Summary      Record a captured donation
// @Description  Stores the donation and adds its amount to the cause total in one transaction.
// @Tags         donations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        donation body model.CreateDonationRequest true "Donation"
// @Success      201  {object}  model.Donation
// @Failure      400  {object}  common.AppError "Invalid amount or body"
// @Failure      404  {object}  common.AppError "Cause not found"
// @Failure      409  {object}  common.AppError "Order already recorded"
// @Router       /donations [post]
func (h *DonationHandler) CreateDonation(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.CreateDonationRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	donation, err := h.service.RecordDonation(r.Context(), req)
	if err != nil {
		return serviceError(err, "Could not record donation")
	}

	common.WriteJSON(w, http.StatusCreated, donation)
	return nil
}

func (h *DonationHandler) ListDonations(w http.ResponseWriter, r *http.Request) *common.AppError {
	donations, err := h.service.ListDonations(r.Context())
	if err != nil {
		return serviceError(err, "Could not retrieve donations")
	}
	common.WriteJSON(w, http.StatusOK, donations)
	return nil
}

// ListDonationsForCause godoc
// @Summary      List donations for a cause
// @Tags         donations
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Cause ID"
// @Success      200  {array}   model.Donation
// @Failure      400  {object}  common.AppError "Invalid cause ID in URL path"
// @Failure      404  {object}  common.AppError "Cause not found"
// @Router       /causes/{id}/donations [get]
func (h *DonationHandler) ListDonationsForCause(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := causeID(r)
	if appErr != nil {
		return appErr
	}
	donations, err := h.service.ListDonationsForCause(r.Context(), id)
	if err != nil {
		return serviceError(err, "Could not retrieve donations")
	}
	common.WriteJSON(w, http.StatusOK, donations)
	return nil
}
