package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/trogers1052/portfolio-advisor/internal/advisor"
	"github.com/trogers1052/portfolio-advisor/internal/database"
	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db  *database.DB
	svc *advisor.Service
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB, svc *advisor.Service) *Handler {
	return &Handler{
		db:  db,
		svc: svc,
	}
}

// RebuildLedger handles POST /accounts/{id}/rebuild
func (h *Handler) RebuildLedger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["id"]

	positions, err := h.svc.Rebuild(r.Context(), accountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, positions)
}

// GetPositions handles GET /accounts/{id}/positions
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["id"]

	positions, err := h.db.GetPositionsByAccount(accountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, positions)
}

// GetPosition handles GET /accounts/{id}/positions/{symbol}
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	position, err := h.db.GetPositionBySymbol(vars["id"], vars["symbol"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, position)
}

// GetLedger handles GET /accounts/{id}/ledger/{symbol}. It returns one
// ticker's raw history: its operations in replay order and the corporate
// events that touch it (including under a previous symbol).
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["id"]
	symbol := vars["symbol"]

	operations, err := h.db.ListOperationsBySymbol(accountID, symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	events, err := h.db.ListEventsBySymbol(accountID, symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":     symbol,
		"operations": operations,
		"events":     events,
	})
}

// SaveTargets handles PUT /accounts/{id}/targets. The body is the target
// tree as nested allocation nodes; each node upserts on (account, level,
// name).
func (h *Handler) SaveTargets(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["id"]

	var roots []*models.AllocationNode
	if err := json.NewDecoder(r.Body).Decode(&roots); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var save func(node *models.AllocationNode, parentID *int) error
	save = func(node *models.AllocationNode, parentID *int) error {
		if err := h.db.SaveTargetNode(accountID, node, parentID); err != nil {
			return err
		}
		for _, child := range node.Children {
			if err := save(child, &node.ID); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := save(root, nil); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	tree, err := h.db.TargetTree(accountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, tree)
}

// GetAllocation handles GET /accounts/{id}/allocation
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["id"]

	tree, total, err := h.svc.Allocation(r.Context(), accountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total_value": total,
		"allocation":  tree,
	})
}

// GenerateRecommendation handles POST /accounts/{id}/recommendations
func (h *Handler) GenerateRecommendation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["id"]

	rec, err := h.svc.Advise(r.Context(), accountID, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, rec)
}

// GetRecommendations handles GET /accounts/{id}/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["id"]

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	recs, err := h.db.GetRecommendationsByAccount(accountID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, recs)
}

// GetRecommendation handles GET /recommendations/{id}
func (h *Handler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "invalid recommendation id", http.StatusBadRequest)
		return
	}

	rec, err := h.db.GetRecommendationByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// UpdateRecommendationStatus handles PATCH /recommendations/{id}
func (h *Handler) UpdateRecommendationStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "invalid recommendation id", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateRecommendationStatus(id, req.Status); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.db.GetRecommendationByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
