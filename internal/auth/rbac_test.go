package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRole(t *testing.T) {
	require.Equal(t, RoleSuperAdmin, NormalizeRole(" Super_Admin "))
	require.Equal(t, RoleStudent, NormalizeRole("student"))
	require.Equal(t, Role(""), NormalizeRole("editor"))
}

func TestHasRole(t *testing.T) {
	require.True(t, HasRole("admin", RoleAdmin, RoleSuperAdmin))
	require.False(t, HasRole("student", RoleAdmin))
	require.False(t, HasRole("", RoleStudent))
	require.False(t, HasRole("admin"))
	require.True(t, IsSuperAdmin("super_admin"))
	require.False(t, Role("guest").Valid())
}

func TestDeviceLabel(t *testing.T) {
	chrome := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	label := DeviceLabel(chrome)
	require.Contains(t, label, "Chrome")
	require.Contains(t, label, " on ")

	require.Equal(t, "Unknown Browser on Unknown OS", DeviceLabel(""))
}
