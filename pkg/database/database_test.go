package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"Bazaar/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestMigrateCreatesTables(t *testing.T) {
	db, err := Open("sqlite", MemoryDSN(t.Name()))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, table := range []any{&models.User{}, &models.Product{}, &models.Conversation{}, &models.ConversationParticipant{}, &models.Message{}} {
		require.True(t, db.Migrator().HasTable(table))
	}
	require.True(t, db.Migrator().HasIndex(&models.Conversation{}, "idx_conversation_product_participants"))

	// running twice is a no-op
	require.NoError(t, Migrate(db))
}
