package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
	"github.com/Corner-venturo/venturo-sub001/internal/users"
	_ "github.com/Corner-venturo/venturo-sub001/testing"
)

const (
	adminID = "00000000-0000-0000-0000-00000000000a"
	staffID = "00000000-0000-0000-0000-00000000000b"
)

type memoryUsersRepo struct {
	users map[string]*users.Detail
}

func newMemoryUsersRepo() *memoryUsersRepo {
	return &memoryUsersRepo{users: map[string]*users.Detail{}}
}

func (m *memoryUsersRepo) add(id, name, email string, role authz.Role) {
	m.users[id] = &users.Detail{
		User: users.User{ID: id, Email: email, DisplayName: name, Role: role, IsActive: true},
	}
}

func (m *memoryUsersRepo) ListUsers(ctx context.Context) ([]users.User, error) {
	var out []users.User
	for _, d := range m.users {
		out = append(out, d.User)
	}
	return out, nil
}

func (m *memoryUsersRepo) GetUser(ctx context.Context, id string) (*users.Detail, error) {
	d, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (m *memoryUsersRepo) UpdateRole(ctx context.Context, id string, role authz.Role) error {
	d, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	d.Role = role
	return nil
}

func (m *memoryUsersRepo) SetActive(ctx context.Context, id string, active bool) error {
	d, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	d.IsActive = active
	return nil
}

func TestListUsersCollatedOrder(t *testing.T) {
	repo := newMemoryUsersRepo()
	repo.add("1", "alice", "alice@venturo.local", authz.RoleStaff)
	repo.add("2", "Bob", "bob@venturo.local", authz.RoleStaff)
	repo.add("3", "Álvaro", "alvaro@venturo.local", authz.RoleStaff)
	svc := users.NewService(repo, nil, nil)

	list, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)

	names := []string{list[0].DisplayName, list[1].DisplayName, list[2].DisplayName}
	// Case-insensitive collation puts alice before Bob and sorts the
	// accented name next to its base letter, unlike a byte-wise sort.
	require.Equal(t, []string{"alice", "Álvaro", "Bob"}, names)
}

func TestChangeRoleAudited(t *testing.T) {
	repo := newMemoryUsersRepo()
	repo.add(adminID, "Admin", "admin@venturo.local", authz.RoleAdmin)
	repo.add(staffID, "Staff", "staff@venturo.local", authz.RoleStaff)
	svc := users.NewService(repo, nil, nil)

	detail, err := svc.ChangeRole(context.Background(), adminID, staffID, "SALES")
	require.NoError(t, err)
	require.Equal(t, authz.RoleSales, detail.Role)
}

func TestChangeRoleRejectsUnknown(t *testing.T) {
	repo := newMemoryUsersRepo()
	repo.add(staffID, "Staff", "staff@venturo.local", authz.RoleStaff)
	svc := users.NewService(repo, nil, nil)

	_, err := svc.ChangeRole(context.Background(), adminID, staffID, "OVERLORD")
	require.ErrorIs(t, err, users.ErrUnknownRole)
	require.Equal(t, authz.RoleStaff, repo.users[staffID].Role)
}

func TestChangeRoleSelfRefused(t *testing.T) {
	repo := newMemoryUsersRepo()
	repo.add(adminID, "Admin", "admin@venturo.local", authz.RoleAdmin)
	svc := users.NewService(repo, nil, nil)

	_, err := svc.ChangeRole(context.Background(), adminID, adminID, "STAFF")
	require.ErrorIs(t, err, users.ErrSelfDemotion)
	require.Equal(t, authz.RoleAdmin, repo.users[adminID].Role)
}

func TestChangeRoleNoopWhenUnchanged(t *testing.T) {
	repo := newMemoryUsersRepo()
	repo.add(adminID, "Admin", "admin@venturo.local", authz.RoleAdmin)
	repo.add(staffID, "Staff", "staff@venturo.local", authz.RoleStaff)
	svc := users.NewService(repo, nil, nil)

	detail, err := svc.ChangeRole(context.Background(), adminID, staffID, "STAFF")
	require.NoError(t, err)
	require.Equal(t, authz.RoleStaff, detail.Role)
}

func TestSetActiveSelfDeactivationRefused(t *testing.T) {
	repo := newMemoryUsersRepo()
	repo.add(adminID, "Admin", "admin@venturo.local", authz.RoleAdmin)
	svc := users.NewService(repo, nil, nil)

	_, err := svc.SetActive(context.Background(), adminID, adminID, false)
	require.ErrorIs(t, err, users.ErrSelfDemotion)
	require.True(t, repo.users[adminID].IsActive)
}

func TestSetActiveTogglesFlag(t *testing.T) {
	repo := newMemoryUsersRepo()
	repo.add(adminID, "Admin", "admin@venturo.local", authz.RoleAdmin)
	repo.add(staffID, "Staff", "staff@venturo.local", authz.RoleStaff)
	svc := users.NewService(repo, nil, nil)

	detail, err := svc.SetActive(context.Background(), adminID, staffID, false)
	require.NoError(t, err)
	require.False(t, detail.IsActive)

	detail, err = svc.SetActive(context.Background(), adminID, staffID, true)
	require.NoError(t, err)
	require.True(t, detail.IsActive)
}

func TestGetUserMissing(t *testing.T) {
	svc := users.NewService(newMemoryUsersRepo(), nil, nil)
	_, err := svc.GetUser(context.Background(), staffID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
