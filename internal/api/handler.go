package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexml/marketplace-server/internal/models"
	"github.com/nexml/marketplace-server/internal/service"
	"github.com/nexml/marketplace-server/internal/utils"
)

// Handler holds the service and exposes the HTTP endpoints
type Handler struct {
	svc    service.Service
	logger *utils.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: utils.NewLogger(),
	}
}

// SetupRoutes registers all API routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")

	// Public routes
	api.POST("/auth/signup", h.SignUp)
	api.POST("/auth/login", h.Login)
	api.GET("/models/:id", h.GetModel)
	api.GET("/models/:id/ratings", h.GetModelRatings)
	api.GET("/models/:id/renters", h.GetModelRenters)
	api.GET("/models/:id/events", h.GetModelEvents)
	api.GET("/users/:id/models", h.GetUserModels)
	api.GET("/profiles/:identity", h.GetUserProfile)

	// Authenticated routes
	protected := api.Group("/")
	protected.Use(AuthMiddleware())
	{
		protected.POST("/models", h.UploadModel)
		protected.PUT("/models/:id", h.UpdateModelState)
		protected.POST("/models/:id/purchase", h.PurchaseModel)
		protected.POST("/models/:id/rent", h.RentModel)
		protected.POST("/models/:id/ratings", h.RateModel)
		protected.PUT("/profile/did", h.SetDID)
	}
}

// Authentication handlers
func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		// Login failures always read as unauthorized to the client
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "UNAUTHORIZED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Listing lifecycle handlers
func (h *Handler) UploadModel(c *gin.Context) {
	var req models.UploadModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		})
		return
	}

	caller := c.GetString("identity")
	model, err := h.svc.UploadModel(c.Request.Context(), caller, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.Info("model %s uploaded by %s", model.ID, caller)
	c.JSON(http.StatusCreated, models.UploadModelResponse{
		Status:    "success",
		ModelID:   model.ID,
		CreatedAt: model.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) UpdateModelState(c *gin.Context) {
	var req models.UpdateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		})
		return
	}

	caller := c.GetString("identity")
	if err := h.svc.UpdateModelState(c.Request.Context(), caller, c.Param("id"), req); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{Status: "success"})
}

func (h *Handler) GetModel(c *gin.Context) {
	model, err := h.svc.GetModel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model)
}

func (h *Handler) GetUserModels(c *gin.Context) {
	userID := c.Param("id")
	modelIDs, err := h.svc.GetUserModels(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UserModelsResponse{
		Status:   "success",
		UserID:   userID,
		ModelIDs: modelIDs,
	})
}

// Transaction handlers
func (h *Handler) PurchaseModel(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		})
		return
	}

	caller := c.GetString("identity")
	modelID := c.Param("id")
	if err := h.svc.PurchaseModel(c.Request.Context(), caller, modelID, req.Amount); err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.Info("model %s purchased by %s for %d", modelID, caller, req.Amount)
	c.JSON(http.StatusOK, models.StatusResponse{Status: "success"})
}

func (h *Handler) RentModel(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		})
		return
	}

	caller := c.GetString("identity")
	modelID := c.Param("id")
	if err := h.svc.RentModel(c.Request.Context(), caller, modelID, req.Amount); err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.Info("model %s rented by %s for %d", modelID, caller, req.Amount)
	c.JSON(http.StatusOK, models.StatusResponse{Status: "success"})
}

func (h *Handler) GetModelRenters(c *gin.Context) {
	modelID := c.Param("id")
	renters, err := h.svc.GetModelRenters(c.Request.Context(), modelID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ModelRentersResponse{
		Status:  "success",
		ModelID: modelID,
		Renters: renters,
	})
}

// Rating handlers
func (h *Handler) RateModel(c *gin.Context) {
	var req models.RateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		})
		return
	}

	caller := c.GetString("identity")
	if err := h.svc.RateModel(c.Request.Context(), caller, c.Param("id"), req.Score, req.Comment); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.StatusResponse{Status: "success"})
}

func (h *Handler) GetModelRatings(c *gin.Context) {
	modelID := c.Param("id")
	ratings, err := h.svc.GetModelRatings(c.Request.Context(), modelID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ModelRatingsResponse{
		Status:  "success",
		ModelID: modelID,
		Ratings: ratings,
	})
}

// Identity directory handlers
func (h *Handler) SetDID(c *gin.Context) {
	var req models.SetDIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		})
		return
	}

	caller := c.GetString("identity")
	if err := h.svc.SetDID(c.Request.Context(), caller, req.DID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{Status: "success"})
}

func (h *Handler) GetUserProfile(c *gin.Context) {
	profile, err := h.svc.GetUserProfile(c.Request.Context(), c.Param("identity"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// Event log handlers
func (h *Handler) GetModelEvents(c *gin.Context) {
	modelID := c.Param("id")
	events, err := h.svc.GetModelEvents(c.Request.Context(), modelID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ModelEventsResponse{
		Status:  "success",
		ModelID: modelID,
		Events:  events,
	})
}

// writeError maps a service error to an HTTP response
func (h *Handler) writeError(c *gin.Context, err error) {
	kind := service.KindOf(err)

	var status int
	switch kind {
	case service.KindInvalidInput:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindInvalidState, service.KindConflict:
		status = http.StatusConflict
	default:
		h.logger.Error("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		})
		return
	}

	c.JSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    string(kind),
		Message: err.Error(),
	})
}
