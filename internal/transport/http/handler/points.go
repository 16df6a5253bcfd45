package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/points-rebuild/internal/usecase"
	"github.com/gin-gonic/gin"
)

type pointsUsecaser interface {
	Reset(ctx context.Context, seasonID string) (usecase.ResetOutput, error)
	Ingest(ctx context.Context, input usecase.IngestInput) (usecase.IngestOutput, error)
	Recalc(ctx context.Context, input usecase.RecalcInput) (usecase.RecalcOutput, error)
}

type PointsHandler struct {
	points pointsUsecaser
	logger *slog.Logger
}

func NewPointsHandler(points pointsUsecaser, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{points: points, logger: logger.With("component", "points_handler")}
}

type resetQuery struct {
	SeasonID string `form:"seasonId" binding:"max=128"`
}

type resetResponse struct {
	Deleted  int    `json:"deleted"`
	SeasonID string `json:"seasonId"`
}

type ingestQuery struct {
	SeasonID            string `form:"seasonId"            binding:"max=128"`
	IngestWindowSeconds int    `form:"ingestWindowSeconds" binding:"min=0"`
}

type ingestResponse struct {
	IngestedWallets int   `json:"ingestedWallets"`
	CursorUpdates   int   `json:"cursorUpdates"`
	UpdatedAt       int64 `json:"updatedAt"`
}

type recalcQuery struct {
	SeasonID string `form:"seasonId" binding:"max=128"`
	Cursor   int    `form:"cursor"   binding:"min=0"`
	Limit    *int   `form:"limit"    binding:"omitempty,min=1,max=5000"`
	Fast     string `form:"fast"     binding:"omitempty,oneof=0 1 true false"`
}

type recalcResponse struct {
	Processed  int  `json:"processed"`
	NextCursor *int `json:"nextCursor"`
	Done       bool `json:"done"`
}

func (h *PointsHandler) Reset(ctx *gin.Context) {
	var q resetQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.points.Reset(ctx.Request.Context(), q.SeasonID)
	if err != nil {
		h.logger.ErrorContext(ctx.Request.Context(), "reset season", "season_id", q.SeasonID, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, resetResponse{Deleted: out.Deleted, SeasonID: out.SeasonID})
}

func (h *PointsHandler) Ingest(ctx *gin.Context) {
	var q ingestQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.points.Ingest(ctx.Request.Context(), usecase.IngestInput{
		SeasonID:      q.SeasonID,
		WindowSeconds: q.IngestWindowSeconds,
	})
	if err != nil {
		h.logger.ErrorContext(ctx.Request.Context(), "ingest", "season_id", q.SeasonID, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, ingestResponse{
		IngestedWallets: out.IngestedWallets,
		CursorUpdates:   out.CursorUpdates,
		UpdatedAt:       out.UpdatedAt.UnixMilli(),
	})
}

func (h *PointsHandler) Recalc(ctx *gin.Context) {
	var q recalcQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := 0 // usecase default
	if q.Limit != nil {
		limit = *q.Limit
	}

	out, err := h.points.Recalc(ctx.Request.Context(), usecase.RecalcInput{
		SeasonID: q.SeasonID,
		Cursor:   q.Cursor,
		Limit:    limit,
		Fast:     q.Fast == "1" || q.Fast == "true",
	})
	if err != nil {
		h.logger.ErrorContext(ctx.Request.Context(), "recalc", "season_id", q.SeasonID, "cursor", q.Cursor, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, recalcResponse{
		Processed:  out.Processed,
		NextCursor: out.NextCursor,
		Done:       out.Done,
	})
}
