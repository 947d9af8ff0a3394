package quote

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/trip-quote/internal/routing"
	"github.com/richxcame/trip-quote/pkg/common"
	"github.com/richxcame/trip-quote/pkg/middleware"
)

// sessions created without the session middleware share this ID
const fallbackSessionID = "default"

// FailureDetails is the error body of a failed quote. It carries whatever
// state the session still holds so the client can keep rendering it.
type FailureDetails struct {
	Stage        Stage             `json:"stage"`
	Reason       Reason            `json:"reason"`
	Message      string            `json:"message"`
	Fields       map[string]string `json:"fields,omitempty"`
	LastQuote    *Result           `json:"last_quote"`
	PartialRoute *routing.Result   `json:"partial_route,omitempty"`
}

// Handler serves the quote API
type Handler struct {
	registry *Registry
}

// NewHandler creates a new quote handler
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes registers all quote routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	{
		quotes.POST("", h.CreateQuote)
		quotes.GET("/last", h.GetLastQuote)
		quotes.GET("/last/geojson", h.GetLastQuoteGeoJSON)
		quotes.DELETE("/last", h.ClearLastQuote)
	}
}

// CreateQuote runs the pipeline for the caller's session
// @Summary Quote a trip
// @Tags Quotes
// @Accept json
// @Produce json
// @Param request body TripRequest true "Trip request"
// @Success 200 {object} Result
// @Failure 400,404,422,502,503 {object} FailureDetails
// @Router /api/v1/quotes [post]
func (h *Handler) CreateQuote(c *gin.Context) {
	var req TripRequest
	if !common.BindJSON(c, &req) {
		return
	}

	svc := h.registry.Session(sessionID(c))
	result, failure := svc.Quote(c.Request.Context(), req)
	if failure != nil {
		respondFailure(c, svc, failure)
		return
	}

	common.SuccessResponse(c, result)
}

// GetLastQuote returns the session's last successful quote
func (h *Handler) GetLastQuote(c *gin.Context) {
	svc, ok := h.registry.Lookup(sessionID(c))
	if !ok {
		common.AppErrorResponse(c, noQuoteError())
		return
	}

	result, ok := svc.LastQuote()
	if !ok {
		common.AppErrorResponse(c, noQuoteError())
		return
	}

	common.SuccessResponse(c, result)
}

// GetLastQuoteGeoJSON renders the last quote for a map widget
func (h *Handler) GetLastQuoteGeoJSON(c *gin.Context) {
	var result *Result
	if svc, ok := h.registry.Lookup(sessionID(c)); ok {
		result, _ = svc.LastQuote()
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, NewFeatureCollection(result))
}

// ClearLastQuote drops the session's retained state
func (h *Handler) ClearLastQuote(c *gin.Context) {
	if svc, ok := h.registry.Lookup(sessionID(c)); ok {
		svc.Clear()
	}
	c.Status(http.StatusNoContent)
}

func respondFailure(c *gin.Context, svc *Service, f *Failure) {
	details := FailureDetails{
		Stage:   f.Stage,
		Reason:  f.Reason,
		Message: f.Message,
		Fields:  f.Fields,
	}
	details.LastQuote, _ = svc.LastQuote()
	if f.Stage == StageFareEstimation {
		details.PartialRoute, _ = svc.LastPartialRoute()
	}

	appErr := common.NewAppError(StatusFor(f), f.Error(), f).
		WithErrorCode(string(f.Reason)).
		WithDetails(details)
	common.HandleServiceError(c, appErr, "quote failed")
}

// StatusFor maps a failure to its HTTP status
func StatusFor(f *Failure) int {
	switch f.Reason {
	case ReasonInvalidRequest:
		return http.StatusBadRequest
	case ReasonNotFound:
		return http.StatusNotFound
	case ReasonNoPathFound:
		return http.StatusUnprocessableEntity
	case ReasonInvalidResponse:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func noQuoteError() *common.AppError {
	return common.NewNotFoundError("no quote has been computed in this session", nil).WithErrorCode("no_quote")
}

func sessionID(c *gin.Context) string {
	if id := middleware.GetSessionID(c); id != "" {
		return id
	}
	return fallbackSessionID
}
