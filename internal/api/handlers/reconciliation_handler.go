// internal/api/handlers/reconciliation_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reconciliation-service/internal/api/responses"
	"reconciliation-service/internal/core/reconcile"
)

// ReconciliationHandler lida com as requisições da API relacionadas à conciliação.
type ReconciliationHandler struct {
	service reconcile.Service
}

// NewReconciliationHandler cria um novo handler de conciliação.
func NewReconciliationHandler(service reconcile.Service) *ReconciliationHandler {
	return &ReconciliationHandler{
		service: service,
	}
}

// HandleReconcile executa uma conciliação entre um extrato OFX e um arquivo
// de retorno CNAB.
func (h *ReconciliationHandler) HandleReconcile(c *gin.Context) {
	var req reconcile.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "Corpo da requisição inválido", err.Error())
		return
	}

	result, err := h.service.Reconcile(c.Request.Context(), req)
	if err != nil {
		var verr reconcile.ValidationError
		if errors.As(err, &verr) {
			responses.Error(c, http.StatusBadRequest, verr.Error())
			return
		}
		responses.Error(c, http.StatusInternalServerError, "Erro na conciliação", err.Error())
		return
	}

	responses.Success(c, result, "Conciliação concluída com sucesso")
}

// HandleListPending lista as propostas aguardando revisão humana.
func (h *ReconciliationHandler) HandleListPending(c *gin.Context) {
	pending, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Erro ao listar pendências", err.Error())
		return
	}
	responses.Success(c, pending, "Pendências listadas com sucesso")
}

// HandleUnmatchedPix lista os créditos PIX não conciliados com a contraparte
// identificada, para acompanhamento manual.
func (h *ReconciliationHandler) HandleUnmatchedPix(c *gin.Context) {
	entries, err := h.service.UnmatchedPix(c.Request.Context(), c.Query("bank_account_id"))
	if err != nil {
		var verr reconcile.ValidationError
		if errors.As(err, &verr) {
			responses.Error(c, http.StatusBadRequest, verr.Error())
			return
		}
		responses.Error(c, http.StatusInternalServerError, "Erro ao listar créditos PIX", err.Error())
		return
	}
	responses.Success(c, entries, "Créditos PIX não conciliados listados com sucesso")
}

type decisionRequest struct {
	Approver string `json:"approver"`
}

// HandleApprove confirma uma proposta da fila, liquidando a fatura vinculada.
func (h *ReconciliationHandler) HandleApprove(c *gin.Context) {
	h.decide(c, h.service.Approve, "Conciliação aprovada com sucesso")
}

// HandleReject descarta uma proposta da fila.
func (h *ReconciliationHandler) HandleReject(c *gin.Context) {
	h.decide(c, h.service.Reject, "Conciliação rejeitada com sucesso")
}

func (h *ReconciliationHandler) decide(c *gin.Context, fn func(ctx context.Context, d reconcile.Decision) error, message string) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "Corpo da requisição inválido", err.Error())
		return
	}
	if req.Approver == "" {
		responses.Error(c, http.StatusBadRequest, "Aprovador não informado")
		return
	}

	err := fn(c.Request.Context(), reconcile.Decision{PendingID: c.Param("id"), Approver: req.Approver})
	if err != nil {
		var verr reconcile.ValidationError
		if errors.As(err, &verr) {
			responses.Error(c, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		responses.Error(c, http.StatusInternalServerError, "Erro ao decidir pendência", err.Error())
		return
	}
	responses.Success(c, nil, message)
}
