package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/HomeLabTec/pokemon/internal/database"
	"github.com/HomeLabTec/pokemon/internal/models"
)

func setupHoldingRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if err := database.Initialize(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}

	handler := NewHoldingHandler(nil, nil)
	router := gin.New()
	router.POST("/api/holdings", handler.CreateHolding)
	router.PATCH("/api/holdings/:id", handler.UpdateHolding)
	return router
}

func seedHolding(t *testing.T, quantity int) models.Holding {
	t.Helper()
	db := database.GetDB()

	set := models.Set{Code: "base1", Name: "Base"}
	if err := db.Create(&set).Error; err != nil {
		t.Fatalf("failed to seed set: %v", err)
	}
	card := models.Card{SetID: set.ID, Number: "4/102", Name: "Charizard"}
	if err := db.Create(&card).Error; err != nil {
		t.Fatalf("failed to seed card: %v", err)
	}
	holding := models.Holding{CardID: card.ID, Quantity: quantity, Condition: models.ConditionNearMint}
	if err := db.Create(&holding).Error; err != nil {
		t.Fatalf("failed to seed holding: %v", err)
	}
	return holding
}

func patchQuantity(t *testing.T, router *gin.Engine, id uint, quantity int) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]int{"quantity": quantity})
	url := "/api/holdings/" + strconv.FormatUint(uint64(id), 10)
	req := httptest.NewRequest(http.MethodPatch, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUpdateHoldingRejectsNonPositiveQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
	}{
		{"zero", 0},
		{"negative", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupHoldingRouter(t)
			holding := seedHolding(t, 2)

			w := patchQuantity(t, router, holding.ID, tt.quantity)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}

			var stored models.Holding
			if err := database.GetDB().First(&stored, holding.ID).Error; err != nil {
				t.Fatalf("failed to reload holding: %v", err)
			}
			if stored.Quantity != 2 {
				t.Errorf("stored quantity = %d, want original 2", stored.Quantity)
			}
		})
	}
}

func TestUpdateHoldingAcceptsPositiveQuantity(t *testing.T) {
	router := setupHoldingRouter(t)
	holding := seedHolding(t, 2)

	w := patchQuantity(t, router, holding.ID, 5)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var stored models.Holding
	if err := database.GetDB().First(&stored, holding.ID).Error; err != nil {
		t.Fatalf("failed to reload holding: %v", err)
	}
	if stored.Quantity != 5 {
		t.Errorf("stored quantity = %d, want 5", stored.Quantity)
	}
}
