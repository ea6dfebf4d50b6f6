package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestJWTManager(expire time.Duration) *JWTManager {
	return NewJWTManager(&JWTConfig{
		SecretKey:  "test-secret",
		ExpireTime: expire,
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager := newTestJWTManager(time.Hour)

	token, err := manager.GenerateToken("user-1", "admin")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := manager.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "threat-radar", claims.Issuer)
}

func TestValidateExpiredToken(t *testing.T) {
	manager := newTestJWTManager(-time.Hour)

	token, err := manager.GenerateToken("user-1", "admin")
	assert.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := newTestJWTManager(time.Hour).GenerateToken("user-1", "admin")
	assert.NoError(t, err)

	other := NewJWTManager(&JWTConfig{SecretKey: "other-secret", ExpireTime: time.Hour})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateGarbageToken(t *testing.T) {
	manager := newTestJWTManager(time.Hour)
	_, err := manager.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserManagerFirstRun(t *testing.T) {
	dir := t.TempDir()

	manager := NewUserManager(dir)
	assert.True(t, manager.IsFirstRun())

	user, err := manager.CreateUser("admin", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, manager.IsFirstRun())

	// 密码已加密存储
	assert.NotEqual(t, "password123", user.Password)

	// 只允许一个管理员
	_, err = manager.CreateUser("second", "password456")
	assert.Error(t, err)
}

func TestAuthenticateUser(t *testing.T) {
	dir := t.TempDir()

	manager := NewUserManager(dir)
	_, err := manager.CreateUser("admin", "password123")
	assert.NoError(t, err)

	user, err := manager.AuthenticateUser("admin", "password123")
	assert.NoError(t, err)
	assert.Equal(t, "admin", user.Username)

	// 密码错误
	_, err = manager.AuthenticateUser("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// 用户不存在
	_, err = manager.AuthenticateUser("nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserManagerPersistence(t *testing.T) {
	dir := t.TempDir()

	first := NewUserManager(dir)
	created, err := first.CreateUser("admin", "password123")
	assert.NoError(t, err)

	// 重新加载后用户仍然存在
	second := NewUserManager(dir)
	assert.False(t, second.IsFirstRun())

	loaded, err := second.GetUserByUsername("admin")
	assert.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)

	_, err = second.AuthenticateUser("admin", "password123")
	assert.NoError(t, err)
}
