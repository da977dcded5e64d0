// internal/api/handlers/import_handler.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"reconciliation-service/internal/api/responses"
	"reconciliation-service/internal/core/importer"
	"reconciliation-service/internal/core/parse"
)

// ImportHandler lida com as requisições da API de importação de faturas e
// liquidações.
type ImportHandler struct {
	service importer.Service
}

// NewImportHandler cria um novo handler de importação.
func NewImportHandler(service importer.Service) *ImportHandler {
	return &ImportHandler{
		service: service,
	}
}

// HandleImportInvoices importa uma planilha de faturas (xlsx ou xls).
func (h *ImportHandler) HandleImportInvoices(c *gin.Context) {
	fileHeader, err := c.FormFile("invoicesFile")
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Planilha de faturas não encontrada ou inválida")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir a planilha de faturas")
		return
	}
	defer file.Close()

	result, err := h.service.ImportInvoices(c.Request.Context(), file)
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Erro na importação de faturas", err.Error())
		return
	}
	responses.Success(c, result, "Importação de faturas concluída com sucesso")
}

// HandleImportSettlements importa um relatório de liquidações, enviado como
// arquivo (reportFile, ISO8859-1 aceito) ou colado no campo report.
func (h *ImportHandler) HandleImportSettlements(c *gin.Context) {
	bankAccountID := c.PostForm("bankAccountId")
	if bankAccountID == "" {
		responses.Error(c, http.StatusBadRequest, "Conta bancária não informada")
		return
	}

	content := c.PostForm("report")
	if content == "" {
		fileHeader, err := c.FormFile("reportFile")
		if err != nil {
			responses.Error(c, http.StatusBadRequest, "Relatório de liquidações não encontrado")
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir o relatório")
			return
		}
		defer file.Close()
		raw, err := io.ReadAll(file)
		if err != nil {
			responses.Error(c, http.StatusInternalServerError, "Não foi possível ler o relatório")
			return
		}
		content = parse.DecodeLatin1(raw)
	}

	result, err := h.service.ImportSettlementReport(c.Request.Context(), content, bankAccountID)
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Erro na importação de liquidações", err.Error())
		return
	}
	responses.Success(c, result, "Importação de liquidações concluída com sucesso")
}
