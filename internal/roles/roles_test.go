package roles_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"eduro/internal/roles"
	"eduro/internal/roles/mocks"
	"eduro/pkg/platform/sentinel"
)

func TestParseFallsBackToDefault(t *testing.T) {
	assert.Equal(t, roles.RoleTeacher, roles.Parse("teacher"))
	assert.Equal(t, roles.Default, roles.Parse(""))
	assert.Equal(t, roles.Default, roles.Parse("superuser"))
}

func TestValid(t *testing.T) {
	assert.True(t, roles.RoleAdmin.Valid())
	assert.False(t, roles.Role("owner").Valid())
}

func TestInMemoryStore(t *testing.T) {
	store := roles.NewInMemoryStore()
	userID := uuid.New()

	_, err := store.FetchRole(context.Background(), userID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	store.Assign(userID, roles.RoleCoordinator)
	role, err := store.FetchRole(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, roles.RoleCoordinator, role)
}

func TestMockStoreContract(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	userID := uuid.New()

	store.EXPECT().
		FetchRole(gomock.Any(), userID).
		Return(roles.Role(""), errors.New("connection refused"))

	_, err := store.FetchRole(context.Background(), userID)
	assert.Error(t, err)
}
