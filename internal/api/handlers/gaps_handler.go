// internal/api/handlers/gaps_handler.go
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"reconciliation-service/internal/api/responses"
	"reconciliation-service/internal/core/gaps"
)

// GapsHandler lida com as requisições da API de auditoria de competências.
type GapsHandler struct {
	service       gaps.Service
	defaultWindow int
}

// NewGapsHandler cria um novo handler de auditoria de competências.
func NewGapsHandler(service gaps.Service, defaultWindow int) *GapsHandler {
	return &GapsHandler{
		service:       service,
		defaultWindow: defaultWindow,
	}
}

// HandleDetect audita o histórico de faturamento dos clientes ativos. O
// parâmetro opcional window_months sobrepõe a janela configurada.
func (h *GapsHandler) HandleDetect(c *gin.Context) {
	windowMonths := h.defaultWindow
	if raw := c.Query("window_months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			responses.Error(c, http.StatusBadRequest, "Parâmetro window_months inválido")
			return
		}
		windowMonths = parsed
	}

	report, err := h.service.Detect(c.Request.Context(), time.Now().UTC(), windowMonths)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Erro na auditoria de competências", err.Error())
		return
	}
	responses.Success(c, report, "Auditoria de competências concluída com sucesso")
}
