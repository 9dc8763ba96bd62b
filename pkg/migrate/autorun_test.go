package migrate_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func openClient(t *testing.T) *db.Client {
	t.Helper()
	conn, err := db.Open(sqlite.Open("file:autorun_" + uuid.NewString() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	return db.NewFromConn(conn)
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	client := openClient(t)
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvProd},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true, AutoMigrate: true},
	}

	require.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, logger.Nop(), client))
	require.False(t, client.DB().Migrator().HasTable(&models.Order{}))
}

func TestMaybeRunDevMigratesSQLite(t *testing.T) {
	client := openClient(t)
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true, AutoMigrate: true},
	}

	require.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, logger.Nop(), client))
	for _, model := range models.All() {
		require.True(t, client.DB().Migrator().HasTable(model))
	}
}
