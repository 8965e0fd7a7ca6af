package controller

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type SequenceController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSequenceController(db *gorm.DB, logger *log.Logger) *SequenceController {
	return &SequenceController{
		DB:     db,
		Logger: logger,
	}
}

type StepInput struct {
	StepNumber int    `json:"step_number" validate:"required,min=1"`
	Subject    string `json:"subject" validate:"required,max=200"`
	Body       string `json:"body" validate:"required"`
	DelayDays  int    `json:"delay_days" validate:"min=0,max=90"`
}

// CreateSequence creates a sequence, optionally with its steps
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name        string      `json:"name" validate:"required,max=100"`
		Description string      `json:"description" validate:"max=500"`
		Steps       []StepInput `json:"steps" validate:"omitempty,dive"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	seen := make(map[int]bool, len(input.Steps))
	for _, step := range input.Steps {
		if seen[step.StepNumber] {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Duplicate step number in sequence", nil)
		}
		seen[step.StepNumber] = true
	}

	sequence := models.Sequence{
		UserID:      user.ID,
		Name:        input.Name,
		Description: input.Description,
		IsActive:    true,
	}
	for _, step := range input.Steps {
		sequence.Steps = append(sequence.Steps, models.SequenceStep{
			StepNumber: step.StepNumber,
			Subject:    step.Subject,
			Body:       step.Body,
			DelayDays:  step.DelayDays,
		})
	}

	if err := sc.DB.Create(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sequence", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sequence))
}

// GetSequences returns all sequences of the user with their steps
func (sc *SequenceController) GetSequences(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequences []models.Sequence
	if err := sc.DB.Where("user_id = ?", user.ID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}

	return c.JSON(utils.SuccessResponse(sequences))
}

// GetSequence returns a single sequence with ordered steps
func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	sequenceID := c.Params("id")

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", sequenceID, user.ID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		First(&sequence).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	return c.JSON(utils.SuccessResponse(sequence))
}

// UpdateSequence updates sequence metadata
func (sc *SequenceController) UpdateSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	sequenceID := c.Params("id")

	var input struct {
		Name        *string `json:"name" validate:"omitempty,max=100"`
		Description *string `json:"description" validate:"omitempty,max=500"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", sequenceID, user.ID).First(&sequence).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	if input.Name != nil {
		sequence.Name = *input.Name
	}
	if input.Description != nil {
		sequence.Description = *input.Description
	}
	if input.IsActive != nil {
		sequence.IsActive = *input.IsActive
	}

	if err := sc.DB.Save(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sequence", err)
	}

	return c.JSON(utils.SuccessResponse(sequence))
}

// DeleteSequence removes a sequence and its steps. Sequences used by a
// running campaign cannot be removed.
func (sc *SequenceController) DeleteSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	sequenceID := c.Params("id")

	var inUse int64
	sc.DB.Model(&models.Campaign{}).
		Where("sequence_id = ? AND status IN ?", sequenceID, []string{"active", "paused"}).
		Count(&inUse)
	if inUse > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Sequence is in use by a running campaign", nil)
	}

	tx := sc.DB.Begin()

	if err := tx.Where("sequence_id = ?", sequenceID).Delete(&models.SequenceStep{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence steps", err)
	}

	result := tx.Where("id = ? AND user_id = ?", sequenceID, user.ID).Delete(&models.Sequence{})
	if result.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	tx.Commit()

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Sequence deleted successfully",
	}))
}

// AddStep appends a step to a sequence
func (sc *SequenceController) AddStep(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	sequenceID := c.Params("id")

	var input StepInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", sequenceID, user.ID).First(&sequence).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	var existing models.SequenceStep
	if err := sc.DB.Where("sequence_id = ? AND step_number = ?", sequence.ID, input.StepNumber).
		First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Step number already exists in sequence", nil)
	}

	step := models.SequenceStep{
		SequenceID: sequence.ID,
		StepNumber: input.StepNumber,
		Subject:    input.Subject,
		Body:       input.Body,
		DelayDays:  input.DelayDays,
	}
	if err := sc.DB.Create(&step).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create step", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(step))
}

// UpdateStep updates a single step of a sequence
func (sc *SequenceController) UpdateStep(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	sequenceID := c.Params("id")
	stepID := c.Params("stepID")

	var input struct {
		StepNumber *int    `json:"step_number" validate:"omitempty,min=1"`
		Subject    *string `json:"subject" validate:"omitempty,max=200"`
		Body       *string `json:"body"`
		DelayDays  *int    `json:"delay_days" validate:"omitempty,min=0,max=90"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", sequenceID, user.ID).First(&sequence).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	var step models.SequenceStep
	if err := sc.DB.Where("id = ? AND sequence_id = ?", stepID, sequence.ID).First(&step).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Step not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch step", err)
	}

	if input.StepNumber != nil && *input.StepNumber != step.StepNumber {
		var existing models.SequenceStep
		if err := sc.DB.Where("sequence_id = ? AND step_number = ?", sequence.ID, *input.StepNumber).
			First(&existing).Error; err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Step number already exists in sequence", nil)
		}
		step.StepNumber = *input.StepNumber
	}
	if input.Subject != nil {
		step.Subject = *input.Subject
	}
	if input.Body != nil {
		step.Body = *input.Body
	}
	if input.DelayDays != nil {
		step.DelayDays = *input.DelayDays
	}

	if err := sc.DB.Save(&step).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update step", err)
	}

	return c.JSON(utils.SuccessResponse(step))
}

// DeleteStep removes a step from a sequence
func (sc *SequenceController) DeleteStep(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	sequenceID := c.Params("id")
	stepID := c.Params("stepID")

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", sequenceID, user.ID).First(&sequence).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	result := sc.DB.Where("id = ? AND sequence_id = ?", stepID, sequence.ID).Delete(&models.SequenceStep{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete step", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Step not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Step deleted successfully",
	}))
}
