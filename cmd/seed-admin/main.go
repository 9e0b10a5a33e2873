package main

import (
	"os"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"github.com/sirupsen/logrus"
)

// Seeds one user per role so a fresh deployment can be driven end to end.
// Passwords come from SEED_PASSWORD (default "changeme"); rerunning skips
// users that already exist.
func main() {
	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if err := models.Migrate(db); err != nil {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "changeme"
	}

	seeds := []struct {
		username    string
		displayName string
		role        models.Role
	}{
		{"ceo", "CEO", models.RoleCEO},
		{"sales", "Salesperson", models.RoleSalesperson},
		{"salesmgr", "Sales Manager", models.RoleSalesManager},
		{"production", "Production Worker", models.RoleProduction},
		{"qc", "QC Inspector", models.RoleQC},
		{"warehouse", "Warehouse Keeper", models.RoleWarehouse},
		{"logistics", "Logistics", models.RoleLogistics},
		{"purchaser", "Purchaser", models.RolePurchaser},
	}

	for _, seed := range seeds {
		user, err := models.CreateUserProfile(db, seed.username, seed.displayName, password, seed.role)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"username": seed.username,
				"error":    err.Error(),
			}).Warn("skipping seed user")
			continue
		}
		logger.WithFields(logrus.Fields{
			"username": user.Username,
			"role":     user.Role,
		}).Info("seeded user")
	}
}
