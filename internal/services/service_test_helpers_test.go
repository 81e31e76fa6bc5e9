package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/database/testutil"
	"github.com/tradelink-hq/tradelink/internal/models"
	"github.com/tradelink-hq/tradelink/pkg/crypto"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword("password-123")
	require.NoError(t, err)

	user := &models.User{
		Email:       email,
		Password:    hash,
		DisplayName: email,
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedCompany(t *testing.T, db *gorm.DB, name string, members ...*models.User) *models.Company {
	t.Helper()
	company := &models.Company{Name: name, Industry: "logistics"}
	require.NoError(t, db.Create(company).Error)
	for _, member := range members {
		require.NoError(t, db.Model(member).Update("company_id", company.ID).Error)
		member.CompanyID = &company.ID
	}
	return company
}

func seedJob(t *testing.T, db *gorm.DB, company *models.Company, poster *models.User, title string) *models.Job {
	t.Helper()
	job := &models.Job{
		CompanyID: company.ID,
		PostedBy:  poster.ID,
		Title:     title,
		Status:    models.JobStatusOpen,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}
