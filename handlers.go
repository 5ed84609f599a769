package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/movilfix/taller_backend/config"
	"bitbucket.org/movilfix/taller_backend/models"
	"bitbucket.org/movilfix/taller_backend/utils"
	"bitbucket.org/movilfix/taller_backend/workflow"
	"github.com/gin-gonic/gin"
)

func registerRoutes(api *gin.RouterGroup) {
	api.GET("/branches/:branchId/folios/:prefix/preview", previewFolioHandler)

	api.POST("/movements", createMovementHandler)
	api.GET("/branches/:branchId/movements", listMovementsHandler)

	api.POST("/tickets", createTicketHandler)
	api.GET("/tickets/:id", getTicketHandler)
	api.GET("/branches/:branchId/tickets", listTicketsHandler)
	api.PATCH("/tickets/:id", updateTicketHandler)
	api.POST("/tickets/:id/state", updateTicketStateHandler)
	api.POST("/tickets/:id/parts", addTicketPartHandler)

	api.POST("/sales", createSaleHandler)
	api.GET("/sales/:id", getSaleHandler)
	api.GET("/sales", listSalesHandler)
	api.POST("/sales/:id/payments", addPaymentHandler)

	api.POST("/cash/registers", createCashRegisterHandler)
	api.GET("/branches/:branchId/cash/registers", listCashRegistersHandler)
	api.POST("/cash/cuts", createCashCutHandler)
	api.GET("/branches/:branchId/cash/cuts", listCashCutsHandler)
}

// respondError maps the workflow error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, utils.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, utils.ErrInvalidTransition),
		errors.Is(err, utils.ErrInsufficientStock),
		errors.Is(err, utils.ErrPaymentIncomplete),
		errors.Is(err, utils.ErrPaymentExceedsBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, utils.ErrConcurrencyConflict),
		errors.Is(err, utils.ErrSequenceGeneration):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func callerScope(c *gin.Context) (organizationId string, userId int) {
	organizationId, _ = utils.GetOrganizationIdFromContext(c.Request.Context())
	userId, _ = utils.GetUserIdFromContext(c.Request.Context())
	return organizationId, userId
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func pageFromQuery(c *gin.Context) utils.Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	return utils.NormalizePagination(page, pageSize)
}

func previewFolioHandler(c *gin.Context) {
	organizationId, _ := callerScope(c)
	branchId, ok := intParam(c, "branchId")
	if !ok {
		return
	}
	folio, err := workflow.PreviewFolio(c.Request.Context(), config.GetDB(), organizationId, c.Param("prefix"), branchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folio": folio})
}

func createMovementHandler(c *gin.Context) {
	var req createMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	organizationId, userId := callerScope(c)
	ip, _ := utils.GetClientIpFromContext(c.Request.Context())
	userAgent, _ := utils.GetUserAgentFromContext(c.Request.Context())

	movement, err := workflow.ApplyMovement(c.Request.Context(), config.GetDB(), config.GetLogger(), organizationId, workflow.NewMovement{
		BranchId:  req.BranchId,
		VariantId: req.VariantId,
		Type:      models.MovementType(req.Type),
		Qty:       req.Qty,
		Reason:    req.Reason,
		Folio:     req.Folio,
		TicketId:  req.TicketId,
		UserId:    userId,
		Ip:        ip,
		UserAgent: userAgent,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func listMovementsHandler(c *gin.Context) {
	organizationId, _ := callerScope(c)
	branchId, ok := intParam(c, "branchId")
	if !ok {
		return
	}

	filter := workflow.MovementFilter{Query: c.Query("q")}
	if t := c.Query("type"); t != "" {
		mt := models.MovementType(t)
		filter.Type = &mt
	}
	if v := c.Query("variant_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			filter.VariantId = &id
		}
	}
	if d := c.Query("start_date"); d != "" {
		filter.StartDate = &d
	}
	if d := c.Query("end_date"); d != "" {
		filter.EndDate = &d
	}

	page := pageFromQuery(c)
	movements, total, err := workflow.ListMovements(c.Request.Context(), config.GetDB(), organizationId, branchId, filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       movements,
		"pagination": gin.H{"page": page.Page, "page_size": page.PageSize, "total": total, "total_pages": page.TotalPages(total)},
	})
}

func createTicketHandler(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	organizationId, userId := callerScope(c)

	ticket, err := workflow.CreateTicket(c.Request.Context(), config.GetDB(), config.GetLogger(), organizationId, workflow.NewTicket{
		BranchId:      req.BranchId,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Device:        req.Device,
		Brand:         req.Brand,
		Model:         req.Model,
		SerialNumber:  req.SerialNumber,
		Problem:       req.Problem,
		EstimatedCost: req.EstimatedCost,
		EstimatedTime: req.EstimatedTime,
		UserId:        userId,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func getTicketHandler(c *gin.Context) {
	organizationId, _ := callerScope(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	ticket, err := models.GetTicketWithHistory(config.GetDB().WithContext(c.Request.Context()), organizationId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func listTicketsHandler(c *gin.Context) {
	organizationId, _ := callerScope(c)
	branchId, ok := intParam(c, "branchId")
	if !ok {
		return
	}

	filter := models.TicketFilter{Query: c.Query("q")}
	if s := c.Query("state"); s != "" {
		state := models.TicketState(s)
		filter.State = &state
	}

	page := pageFromQuery(c)
	tickets, total, err := models.ListTickets(config.GetDB().WithContext(c.Request.Context()), organizationId, branchId, filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       tickets,
		"pagination": gin.H{"page": page.Page, "page_size": page.PageSize, "total": total, "total_pages": page.TotalPages(total)},
	})
}

func updateTicketHandler(c *gin.Context) {
	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	organizationId, _ := callerScope(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	ticket, err := workflow.UpdateTicket(c.Request.Context(), config.GetDB(), organizationId, id, workflow.TicketPatch{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Device:        req.Device,
		Brand:         req.Brand,
		Model:         req.Model,
		SerialNumber:  req.SerialNumber,
		Problem:       req.Problem,
		Diagnosis:     req.Diagnosis,
		Solution:      req.Solution,
		EstimatedCost: req.EstimatedCost,
		FinalCost:     req.FinalCost,
		EstimatedTime: req.EstimatedTime,
		WarrantyDays:  req.WarrantyDays,
		InternalNotes: req.InternalNotes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func updateTicketStateHandler(c *gin.Context) {
	var req updateTicketStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	organizationId, userId := callerScope(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	ip, _ := utils.GetClientIpFromContext(c.Request.Context())
	userAgent, _ := utils.GetUserAgentFromContext(c.Request.Context())

	ticket, err := workflow.UpdateTicketState(c.Request.Context(), config.GetDB(), config.GetLogger(), organizationId, id, workflow.StateChange{
		State:          models.TicketState(req.State),
		Notes:          req.Notes,
		Diagnosis:      req.Diagnosis,
		Solution:       req.Solution,
		EstimatedCost:  req.EstimatedCost,
		FinalCost:      req.FinalCost,
		AdvancePayment: req.AdvancePayment,
		InternalNotes:  req.InternalNotes,
		UserId:         userId,
		Ip:             ip,
		UserAgent:      userAgent,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func addTicketPartHandler(c *gin.Context) {
	var req addTicketPartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	organizationId, _ := callerScope(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	part, err := workflow.AddTicketPart(c.Request.Context(), config.GetDB(), config.GetLogger(), organizationId, id, req.VariantId, req.Qty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, part)
}

func createSaleHandler(c *gin.Context) {
	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	organizationId, userId := callerScope(c)

	lines := make([]workflow.NewSaleLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, workflow.NewSaleLine{
			VariantId:   line.VariantId,
			Description: line.Description,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
		})
	}

	input := workflow.NewSale{
		BranchId:   req.BranchId,
		CustomerId: req.CustomerId,
		TicketId:   req.TicketId,
		Lines:      lines,
		Discount:   req.Discount,
		UserId:     userId,
	}
	if req.Payment != nil {
		input.Payment = &workflow.NewPayment{
			Amount:    req.Payment.Amount,
			Method:    models.PaymentMethod(req.Payment.Method),
			Reference: req.Payment.Reference,
		}
	}

	sale, err := workflow.CreateSale(c.Request.Context(), config.GetDB(), config.GetLogger(), organizationId, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func getSaleHandler(c *gin.Context) {
	organizationId, _ := callerScope(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	sale, err := models.GetSale(config.GetDB().WithContext(c.Request.Context()), organizationId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func listSalesHandler(c *gin.Context) {
	organizationId, _ := callerScope(c)

	filter := models.SaleFilter{}
	if v := c.Query("branch_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			filter.BranchId = &id
		}
	}
	if v := c.Query("ticket_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			filter.TicketId = &id
		}
	}
	if s := c.Query("status"); s != "" {
		status := models.SaleStatus(s)
		filter.Status = &status
	}

	page := pageFromQuery(c)
	sales, total, err := models.ListSales(config.GetDB().WithContext(c.Request.Context()), organizationId, filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       sales,
		"pagination": gin.H{"page": page.Page, "page_size": page.PageSize, "total": total, "total_pages": page.TotalPages(total)},
	})
}

func addPaymentHandler(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	organizationId, userId := callerScope(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	payment, err := workflow.AddPayment(c.Request.Context(), config.GetDB(), config.GetLogger(), organizationId, id, workflow.NewPayment{
		Amount:    req.Amount,
		Method:    models.PaymentMethod(req.Method),
		Reference: req.Reference,
	}, userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func createCashRegisterHandler(c *gin.Context) {
	var req createCashRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	organizationId, _ := callerScope(c)

	register, err := workflow.CreateCashRegister(c.Request.Context(), config.GetDB(), organizationId, req.BranchId, req.Code, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, register)
}

func listCashRegistersHandler(c *gin.Context) {
	organizationId, _ := callerScope(c)
	branchId, ok := intParam(c, "branchId")
	if !ok {
		return
	}
	registers, err := models.ListCashRegisters(config.GetDB().WithContext(c.Request.Context()), organizationId, branchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, registers)
}

func createCashCutHandler(c *gin.Context) {
	var req createCashCutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	organizationId, userId := callerScope(c)

	cut, err := workflow.CreateCashCut(c.Request.Context(), config.GetDB(), config.GetLogger(), organizationId, workflow.NewCashCut{
		CashRegisterId: req.CashRegisterId,
		BranchId:       req.BranchId,
		Date:           req.Date,
		InitialAmount:  req.InitialAmount,
		Adjustments:    req.Adjustments,
		Notes:          req.Notes,
		UserId:         userId,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cut)
}

func listCashCutsHandler(c *gin.Context) {
	organizationId, _ := callerScope(c)
	branchId, ok := intParam(c, "branchId")
	if !ok {
		return
	}

	filter := models.CashCutFilter{}
	if v := c.Query("cash_register_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			filter.CashRegisterId = &id
		}
	}

	page := pageFromQuery(c)
	cuts, total, err := models.ListCashCuts(config.GetDB().WithContext(c.Request.Context()), organizationId, branchId, filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       cuts,
		"pagination": gin.H{"page": page.Page, "page_size": page.PageSize, "total": total, "total_pages": page.TotalPages(total)},
	})
}
