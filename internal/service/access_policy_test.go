package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-reservation/internal/model"
	"github.com/iliyamo/slot-reservation/internal/repository"
)

type fakeDirectory struct {
	users map[string]model.User
}

func (d *fakeDirectory) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := d.users[email]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

type fakeAssignments struct {
	assigned map[[2]uint64]bool
}

func (a *fakeAssignments) IsAssigned(_ context.Context, slotID, adminID uint64) (bool, error) {
	return a.assigned[[2]uint64{slotID, adminID}], nil
}

func testDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[string]model.User{
		"admin@example.com":    {ID: 1, Email: "admin@example.com", Role: model.RoleAdmin, IsActive: true},
		"user@example.com":     {ID: 2, Email: "user@example.com", Role: model.RoleParticipant, IsActive: true},
		"inactive@example.com": {ID: 3, Email: "inactive@example.com", Role: model.RoleParticipant, IsActive: false},
	}}
}

func TestCanBook(t *testing.T) {
	p := NewAccessPolicy(testDirectory(), nil, false)

	cases := []struct {
		name  string
		email string
		want  bool
	}{
		{"active participant", "user@example.com", true},
		{"active admin", "admin@example.com", true},
		{"deactivated account", "inactive@example.com", false},
		{"unknown identity", "stranger@example.com", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := p.CanBook(context.Background(), tc.email)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestCanManageUnscoped(t *testing.T) {
	p := NewAccessPolicy(testDirectory(), nil, false)

	ok, err := p.CanManage(context.Background(), "admin@example.com", 7)
	require.NoError(t, err)
	assert.True(t, ok, "any admin manages any slot when not scoped")

	ok, err = p.CanManage(context.Background(), "user@example.com", 7)
	require.NoError(t, err)
	assert.False(t, ok, "participants never manage")
}

func TestCanManageScoped(t *testing.T) {
	assignments := &fakeAssignments{assigned: map[[2]uint64]bool{
		{7, 1}: true,
	}}
	p := NewAccessPolicy(testDirectory(), assignments, true)

	ok, err := p.CanManage(context.Background(), "admin@example.com", 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.CanManage(context.Background(), "admin@example.com", 8)
	require.NoError(t, err)
	assert.False(t, ok, "scoped admin is limited to assigned slots")
}

func TestRequireTranslatesToForbidden(t *testing.T) {
	p := NewAccessPolicy(testDirectory(), nil, false)

	assert.NoError(t, p.Require(context.Background(), "admin@example.com", 1))
	assert.ErrorIs(t, p.Require(context.Background(), "user@example.com", 1), repository.ErrForbidden)
	assert.ErrorIs(t, p.Require(context.Background(), "stranger@example.com", 1), repository.ErrForbidden)
}
