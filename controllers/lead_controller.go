package controller

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, logger *log.Logger) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
	}
}

type LeadInput struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Company    string `json:"company" validate:"omitempty,max=200"`
	Title      string `json:"title" validate:"omitempty,max=100"`
	LeadListID *uint  `json:"lead_list_id"`
}

// CreateLead creates a single lead
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input LeadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.LeadListID != nil {
		var list models.LeadList
		if err := lc.DB.Where("id = ? AND user_id = ?", *input.LeadListID, user.ID).First(&list).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead list not found", nil)
		}
	}

	lead := models.Lead{
		UserID:     user.ID,
		LeadListID: input.LeadListID,
		Name:       input.Name,
		Email:      strings.ToLower(input.Email),
		Company:    input.Company,
		Title:      input.Title,
		Status:     "active",
		Source:     "manual",
	}

	if err := lc.DB.Create(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}

	if input.LeadListID != nil {
		lc.DB.Model(&models.LeadList{}).Where("id = ?", *input.LeadListID).
			Update("lead_count", gorm.Expr("lead_count + ?", 1))
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// GetLeads returns the user's leads with pagination and filters
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := lc.DB.Where("user_id = ?", user.ID)

	if listID := c.Query("list_id"); listID != "" {
		query = query.Where("lead_list_id = ?", utils.ParseUint(listID))
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var leads []models.Lead
	if err := query.Offset(offset).Limit(limit).Order("id DESC").Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	var total int64
	query.Model(&models.Lead{}).Count(&total)

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// SearchLeads searches the user's leads across name, email, company
// and title
func (lc *LeadController) SearchLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Search query is required", nil)
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var leads []models.Lead
	if err := lc.DB.Where("user_id = ?", user.ID).
		Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ? OR LOWER(title) LIKE ?",
			pattern, pattern, pattern, pattern).
		Limit(100).Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to search leads", err)
	}

	return c.JSON(utils.SuccessResponse(leads))
}

// GetLead returns a single lead by ID
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	leadID := c.Params("id")

	var lead models.Lead
	if err := lc.DB.Where("id = ? AND user_id = ?", leadID, user.ID).First(&lead).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// UpdateLead updates lead details
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	leadID := c.Params("id")

	var input struct {
		Name    *string `json:"name" validate:"omitempty,max=100"`
		Email   *string `json:"email" validate:"omitempty,email"`
		Company *string `json:"company" validate:"omitempty,max=200"`
		Title   *string `json:"title" validate:"omitempty,max=100"`
		Status  *string `json:"status" validate:"omitempty,oneof=active unsubscribed bounced"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var lead models.Lead
	if err := lc.DB.Where("id = ? AND user_id = ?", leadID, user.ID).First(&lead).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	if input.Name != nil {
		lead.Name = *input.Name
	}
	if input.Email != nil {
		lead.Email = strings.ToLower(*input.Email)
	}
	if input.Company != nil {
		lead.Company = *input.Company
	}
	if input.Title != nil {
		lead.Title = *input.Title
	}
	if input.Status != nil {
		lead.Status = *input.Status
	}

	if err := lc.DB.Save(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// DeleteLead deletes a single lead
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	leadID := c.Params("id")

	var lead models.Lead
	if err := lc.DB.Where("id = ? AND user_id = ?", leadID, user.ID).First(&lead).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	if err := lc.DB.Delete(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}

	if lead.LeadListID != nil {
		lc.DB.Model(&models.LeadList{}).Where("id = ? AND lead_count > 0", *lead.LeadListID).
			Update("lead_count", gorm.Expr("lead_count - ?", 1))
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Lead deleted successfully",
	}))
}

// BulkCreateLeads inserts a batch of leads in one request. Rows without
// a valid email are rejected before anything is written.
func (lc *LeadController) BulkCreateLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Leads      []LeadInput `json:"leads" validate:"required,min=1,max=1000"`
		LeadListID *uint       `json:"lead_list_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	for i, item := range input.Leads {
		if err := utils.ValidateStruct(item); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest,
				"Validation failed for lead at index "+strconv.Itoa(i), err)
		}
	}

	// Every referenced list, top-level or per-row, must belong to the caller
	listIDs := make(map[uint]bool)
	if input.LeadListID != nil {
		listIDs[*input.LeadListID] = true
	}
	for _, item := range input.Leads {
		if item.LeadListID != nil {
			listIDs[*item.LeadListID] = true
		}
	}
	if len(listIDs) > 0 {
		ids := make([]uint, 0, len(listIDs))
		for id := range listIDs {
			ids = append(ids, id)
		}
		var owned int64
		if err := lc.DB.Model(&models.LeadList{}).
			Where("id IN ? AND user_id = ?", ids, user.ID).
			Count(&owned).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to verify lead lists", err)
		}
		if owned != int64(len(ids)) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead list not found", nil)
		}
	}

	leads := make([]models.Lead, 0, len(input.Leads))
	perList := make(map[uint]int)
	for _, item := range input.Leads {
		listID := input.LeadListID
		if item.LeadListID != nil {
			listID = item.LeadListID
		}
		if listID != nil {
			perList[*listID]++
		}
		leads = append(leads, models.Lead{
			UserID:     user.ID,
			LeadListID: listID,
			Name:       item.Name,
			Email:      strings.ToLower(item.Email),
			Company:    item.Company,
			Title:      item.Title,
			Status:     "active",
			Source:     "manual",
		})
	}

	if err := lc.DB.CreateInBatches(&leads, 100).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create leads", err)
	}

	for listID, n := range perList {
		lc.DB.Model(&models.LeadList{}).Where("id = ?", listID).
			Update("lead_count", gorm.Expr("lead_count + ?", n))
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"created": len(leads),
		"leads":   leads,
	}))
}

// BulkDeleteLeads deletes the caller's leads among the given IDs.
// IDs belonging to another user are silently skipped.
func (lc *LeadController) BulkDeleteLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		LeadIDs []uint `json:"lead_ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	result := lc.DB.Where("id IN ? AND user_id = ?", input.LeadIDs, user.ID).Delete(&models.Lead{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete leads", result.Error)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Leads deleted successfully",
		"deleted": result.RowsAffected,
	}))
}

// ImportLeads imports leads from an uploaded CSV file. Expected header
// columns: name, email, company, title (order free, extra columns
// ignored). Rows without an email are skipped.
func (lc *LeadController) ImportLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var leadListID *uint
	if listIDStr := c.Query("list_id"); listIDStr != "" {
		id := utils.ParseUint(listIDStr)
		var list models.LeadList
		if err := lc.DB.Where("id = ? AND user_id = ?", id, user.ID).First(&list).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead list not found", nil)
		}
		leadListID = &id
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}
	if file.Size > 5<<20 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 5MB)", nil)
	}

	src, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to open file", err)
	}
	defer src.Close()

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse CSV file", err)
	}
	if len(records) < 2 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "CSV file must have at least a header and one row", nil)
	}

	header := records[0]
	columns := make(map[string]int, len(header))
	for i, col := range header {
		columns[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := columns["email"]; !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "CSV file must have an email column", nil)
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var leads []models.Lead
	skipped := 0
	for _, row := range records[1:] {
		email := field(row, "email")
		if email == "" {
			skipped++
			continue
		}
		leads = append(leads, models.Lead{
			UserID:     user.ID,
			LeadListID: leadListID,
			Name:       field(row, "name"),
			Email:      strings.ToLower(email),
			Company:    field(row, "company"),
			Title:      field(row, "title"),
			Status:     "active",
			Source:     "csv",
		})
	}

	if len(leads) > 0 {
		if err := lc.DB.CreateInBatches(&leads, 100).Error; err != nil {
			utils.LogError(lc.Logger, err, "Failed to import leads", log.Fields{"user_id": user.ID})
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import leads", err)
		}
		if leadListID != nil {
			lc.DB.Model(&models.LeadList{}).Where("id = ?", *leadListID).
				Update("lead_count", gorm.Expr("lead_count + ?", len(leads)))
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message":    "Leads imported successfully",
		"total_rows": len(records) - 1,
		"imported":   len(leads),
		"skipped":    skipped,
	}))
}

// ExportLeads streams the user's leads as a CSV download
func (lc *LeadController) ExportLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var leads []models.Lead
	if err := lc.DB.Where("user_id = ?", user.ID).Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", "attachment; filename=leads_export_"+time.Now().Format("20060102")+".csv")

	writer := csv.NewWriter(c)
	defer writer.Flush()

	if err := writer.Write([]string{"name", "email", "company", "title", "status", "source"}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
	}

	for _, lead := range leads {
		record := []string{lead.Name, lead.Email, lead.Company, lead.Title, lead.Status, lead.Source}
		if err := writer.Write(record); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
		}
	}

	return nil
}

// CreateLeadList creates a new lead list
func (lc *LeadController) CreateLeadList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description" validate:"max=500"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var existing models.LeadList
	if err := lc.DB.Where("name = ? AND user_id = ?", input.Name, user.ID).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "List with this name already exists", nil)
	}

	list := models.LeadList{
		UserID:      user.ID,
		Name:        input.Name,
		Description: input.Description,
		Source:      "manual",
	}
	if err := lc.DB.Create(&list).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead list", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(list))
}

// GetLeadLists returns all lead lists of the user
func (lc *LeadController) GetLeadLists(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lists []models.LeadList
	if err := lc.DB.Where("user_id = ?", user.ID).Find(&lists).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead lists", err)
	}

	return c.JSON(utils.SuccessResponse(lists))
}

// GetLeadList returns a single lead list
func (lc *LeadController) GetLeadList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var list models.LeadList
	if err := lc.DB.Where("id = ? AND user_id = ?", listID, user.ID).First(&list).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead list not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead list", err)
	}

	return c.JSON(utils.SuccessResponse(list))
}

// UpdateLeadList updates list details
func (lc *LeadController) UpdateLeadList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var input struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description" validate:"max=500"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var list models.LeadList
	if err := lc.DB.Where("id = ? AND user_id = ?", listID, user.ID).First(&list).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead list not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead list", err)
	}

	if input.Name != list.Name {
		var existing models.LeadList
		if err := lc.DB.Where("name = ? AND user_id = ?", input.Name, user.ID).First(&existing).Error; err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, "List with this name already exists", nil)
		}
		list.Name = input.Name
	}
	list.Description = input.Description

	if err := lc.DB.Save(&list).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead list", err)
	}

	return c.JSON(utils.SuccessResponse(list))
}

// DeleteLeadList deletes a list and detaches its leads
func (lc *LeadController) DeleteLeadList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	tx := lc.DB.Begin()

	if err := tx.Model(&models.Lead{}).
		Where("lead_list_id = ? AND user_id = ?", listID, user.ID).
		Update("lead_list_id", nil).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to detach leads", err)
	}

	result := tx.Where("id = ? AND user_id = ?", listID, user.ID).Delete(&models.LeadList{})
	if result.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead list", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead list not found", nil)
	}

	tx.Commit()

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Lead list deleted successfully",
	}))
}
