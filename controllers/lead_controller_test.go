package controller

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"emailforge/models"
)

func newLeadTestApp(db *gorm.DB, user *models.User) *fiber.App {
	lc := NewLeadController(db, testLogger())

	app := fiber.New()
	api := app.Group("/api/v1", authAs(user))
	api.Post("/leads", lc.CreateLead)
	api.Get("/leads", lc.GetLeads)
	api.Get("/leads/search", lc.SearchLeads)
	api.Post("/leads/import", lc.ImportLeads)
	api.Post("/leads/bulk", lc.BulkCreateLeads)
	api.Delete("/leads/bulk", lc.BulkDeleteLeads)
	api.Get("/leads/:id", lc.GetLead)
	api.Put("/leads/:id", lc.UpdateLead)
	api.Delete("/leads/:id", lc.DeleteLead)
	api.Post("/lead-lists", lc.CreateLeadList)
	api.Delete("/lead-lists/:id", lc.DeleteLeadList)
	return app
}

func TestCreateLeadMissingEmail(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newLeadTestApp(db, user)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/leads", fiber.Map{
		"name": "No Email",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var count int64
	db.Model(&models.Lead{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateLeadLowercasesEmail(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newLeadTestApp(db, user)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/leads", fiber.Map{
		"name":  "Jane",
		"email": "Jane@Acme.COM",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var lead models.Lead
	require.NoError(t, db.First(&lead).Error)
	assert.Equal(t, "jane@acme.com", lead.Email)
	assert.Equal(t, "manual", lead.Source)
	assert.Equal(t, "active", lead.Status)
}

func TestGetLeadOwnership(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	lead := models.Lead{UserID: owner.ID, Name: "Jane", Email: "jane@acme.com", Status: "active"}
	require.NoError(t, db.Create(&lead).Error)

	app := newLeadTestApp(db, other)
	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/leads/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBulkDeleteOnlyRemovesOwnedLeads(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	mine := models.Lead{UserID: owner.ID, Name: "Mine", Email: "mine@acme.com", Status: "active"}
	theirs := models.Lead{UserID: other.ID, Name: "Theirs", Email: "theirs@acme.com", Status: "active"}
	require.NoError(t, db.Create(&mine).Error)
	require.NoError(t, db.Create(&theirs).Error)

	app := newLeadTestApp(db, owner)
	resp, err := app.Test(jsonRequest(t, "DELETE", "/api/v1/leads/bulk", fiber.Map{
		"lead_ids": []uint{mine.ID, theirs.ID},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["deleted"])

	var count int64
	db.Model(&models.Lead{}).Where("user_id = ?", other.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestBulkCreateLeadsUpdatesListCount(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	list := models.LeadList{UserID: user.ID, Name: "Q3 targets", Source: "manual"}
	require.NoError(t, db.Create(&list).Error)

	app := newLeadTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/leads/bulk", fiber.Map{
		"lead_list_id": list.ID,
		"leads": []fiber.Map{
			{"name": "A", "email": "a@acme.com"},
			{"name": "B", "email": "b@acme.com"},
			{"name": "C", "email": "c@acme.com"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var fresh models.LeadList
	require.NoError(t, db.First(&fresh, list.ID).Error)
	assert.Equal(t, 3, fresh.LeadCount)
}

func TestBulkCreateLeadsRejectsForeignList(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	theirs := models.LeadList{UserID: other.ID, Name: "Their list", Source: "manual", LeadCount: 5}
	require.NoError(t, db.Create(&theirs).Error)

	app := newLeadTestApp(db, owner)
	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/leads/bulk", fiber.Map{
		"leads": []fiber.Map{
			{"name": "A", "email": "a@acme.com", "lead_list_id": theirs.ID},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var count int64
	db.Model(&models.Lead{}).Count(&count)
	assert.Zero(t, count)

	var fresh models.LeadList
	require.NoError(t, db.First(&fresh, theirs.ID).Error)
	assert.Equal(t, 5, fresh.LeadCount)
}

func TestBulkCreateLeadsCountsPerItemLists(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	listA := models.LeadList{UserID: user.ID, Name: "A list", Source: "manual"}
	listB := models.LeadList{UserID: user.ID, Name: "B list", Source: "manual"}
	require.NoError(t, db.Create(&listA).Error)
	require.NoError(t, db.Create(&listB).Error)

	app := newLeadTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/leads/bulk", fiber.Map{
		"lead_list_id": listA.ID,
		"leads": []fiber.Map{
			{"name": "A", "email": "a@acme.com"},
			{"name": "B", "email": "b@acme.com", "lead_list_id": listB.ID},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var freshA, freshB models.LeadList
	require.NoError(t, db.First(&freshA, listA.ID).Error)
	require.NoError(t, db.First(&freshB, listB.ID).Error)
	assert.Equal(t, 1, freshA.LeadCount)
	assert.Equal(t, 1, freshB.LeadCount)
}

func TestImportLeadsFromCSV(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newLeadTestApp(db, user)

	csv := "Name,Email,Company\nJane Doe,jane@acme.com,Acme\n,missing-name@acme.com,\nNobody,,\n"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "leads.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["imported"])
	assert.Equal(t, float64(1), data["skipped"])

	var leads []models.Lead
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&leads).Error)
	require.Len(t, leads, 2)
	for _, lead := range leads {
		assert.Equal(t, "csv", lead.Source)
	}
}

func TestSearchLeadsRequiresQuery(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newLeadTestApp(db, user)

	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/leads/search", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSearchLeadsMatchesCompany(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	require.NoError(t, db.Create(&models.Lead{
		UserID: user.ID, Name: "Jane", Email: "jane@acme.com",
		Company: "Acme Rockets", Status: "active",
	}).Error)
	require.NoError(t, db.Create(&models.Lead{
		UserID: user.ID, Name: "Bob", Email: "bob@globex.com",
		Company: "Globex", Status: "active",
	}).Error)

	app := newLeadTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/leads/search?q=rockets", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	results := body["data"].([]interface{})
	require.Len(t, results, 1)
}

func TestDeleteLeadListDetachesLeads(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	list := models.LeadList{UserID: user.ID, Name: "Old list", Source: "manual", LeadCount: 1}
	require.NoError(t, db.Create(&list).Error)
	lead := models.Lead{
		UserID: user.ID, Name: "Jane", Email: "jane@acme.com",
		Status: "active", LeadListID: &list.ID,
	}
	require.NoError(t, db.Create(&lead).Error)

	app := newLeadTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "DELETE", "/api/v1/lead-lists/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var fresh models.Lead
	require.NoError(t, db.First(&fresh, lead.ID).Error)
	assert.Nil(t, fresh.LeadListID)
}
