package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HomeLabTec/pokemon/internal/database"
	"github.com/HomeLabTec/pokemon/internal/models"
	"github.com/HomeLabTec/pokemon/internal/services"
)

// maxPhotoUploadSize bounds raw photo uploads before downscaling.
const maxPhotoUploadSize = 20 << 20 // 20 MiB

type ScanHandler struct {
	scans *services.ScanManager
}

func NewScanHandler(scans *services.ScanManager) *ScanHandler {
	return &ScanHandler{scans: scans}
}

func (h *ScanHandler) CreateSession(c *gin.Context) {
	session := h.scans.Create()
	c.JSON(http.StatusCreated, gin.H{"session_id": session.ID})
}

func (h *ScanHandler) GetState(c *gin.Context) {
	state, err := h.scans.State(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

// SubmitPhoto accepts a card photo upload, downscales it, and starts
// identification in the background. Poll the session state for the result.
func (h *ScanHandler) SubmitPhoto(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing photo upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoUploadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
		return
	}

	scaled, err := services.DownscaleJPEG(data, services.IdentifyMaxDimension)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image data"})
		return
	}

	if err := h.scans.SubmitPhoto(c.Param("id"), scaled); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "identifying"})
}

func (h *ScanHandler) ManualSearch(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.scans.ManualSearch(c.Param("id"), req.Query); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "searching"})
}

func (h *ScanHandler) SelectCandidate(c *gin.Context) {
	var req struct {
		CardID uint `json:"card_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.scans.SelectCandidate(c.Param("id"), req.CardID); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	state, _ := h.scans.State(c.Param("id"))
	c.JSON(http.StatusOK, state)
}

// ConfirmRequest finalizes a scan into a holding. Grader and grade, when
// present, also record the card as graded.
type ConfirmRequest struct {
	Quantity   int              `json:"quantity"`
	Condition  models.Condition `json:"condition"`
	IsForTrade bool             `json:"is_for_trade"`
	Notes      string           `json:"notes"`
	Grader     string           `json:"grader"`
	Grade      string           `json:"grade"`
	Finish     string           `json:"finish"`
}

// Confirm persists the confirmed card as a holding. Grading metadata rides
// along inside the notes column, and the graded record itself is written in
// the background so a slow insert never blocks the scan flow.
func (h *ScanHandler) Confirm(c *gin.Context) {
	sessionID := c.Param("id")

	card, err := h.scans.SelectedCard(sessionID)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	condition := req.Condition
	if condition == "" {
		condition = models.ConditionNearMint
	}

	meta := services.HoldingMeta{
		Grader: req.Grader,
		Grade:  req.Grade,
		Finish: req.Finish,
	}

	db := database.GetDB()
	holding := models.Holding{
		CardID:     card.ID,
		Quantity:   quantity,
		Condition:  condition,
		IsForTrade: req.IsForTrade,
		Notes:      services.EncodeNotes(meta, req.Notes),
	}
	if err := db.Create(&holding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Grader != "" && req.Grade != "" {
		cardID := card.ID
		go func() {
			item := models.GradedItem{CardID: cardID, Grader: req.Grader, Grade: req.Grade}
			result := database.GetDB().Where("card_id = ?", cardID).
				Assign(models.GradedItem{Grader: req.Grader, Grade: req.Grade}).
				FirstOrCreate(&item)
			if result.Error != nil {
				log.Printf("Scan handler: failed to record graded card %d: %v", cardID, result.Error)
			}
		}()
	}

	if err := h.scans.MarkSaved(sessionID); err != nil {
		log.Printf("Scan handler: failed to mark session %s saved: %v", sessionID, err)
	}

	c.JSON(http.StatusCreated, holding)
}

func (h *ScanHandler) Reset(c *gin.Context) {
	if err := h.scans.Reset(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	state, _ := h.scans.State(c.Param("id"))
	c.JSON(http.StatusOK, state)
}
