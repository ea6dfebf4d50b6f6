package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// 错误定义
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
)

// User 用户信息
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"` // 存储加密后的密码
}

// UserManager 用户管理器
type UserManager struct {
	users    map[string]*User
	dataPath string
}

// NewUserManager 创建用户管理器
func NewUserManager(dataPath string) *UserManager {
	manager := &UserManager{
		users:    make(map[string]*User),
		dataPath: filepath.Join(dataPath, "users.json"),
	}

	manager.loadUsers()

	return manager
}

// CreateUser 创建用户
func (m *UserManager) CreateUser(username, password string) (*User, error) {
	// 只允许创建一个管理员用户
	if len(m.users) > 0 {
		return nil, errors.New("system already initialized, only one user is allowed")
	}

	userID := uuid.New().String()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:       userID,
		Username: username,
		Password: string(hashedPassword),
	}

	m.users[userID] = user

	if err := m.saveUsers(); err != nil {
		return nil, err
	}

	return user, nil
}

// GetUserByUsername 通过用户名获取用户
func (m *UserManager) GetUserByUsername(username string) (*User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

// AuthenticateUser 验证用户身份
func (m *UserManager) AuthenticateUser(username, password string) (*User, error) {
	user, err := m.GetUserByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// IsFirstRun 检查是否是首次运行（没有用户）
func (m *UserManager) IsFirstRun() bool {
	return len(m.users) == 0
}

// loadUsers 加载用户数据
func (m *UserManager) loadUsers() {
	if _, err := os.Stat(m.dataPath); os.IsNotExist(err) {
		os.MkdirAll(filepath.Dir(m.dataPath), 0755)
		file, err := os.Create(m.dataPath)
		if err != nil {
			return
		}
		file.Close()
		return
	}

	content, err := os.ReadFile(m.dataPath)
	if err != nil || len(content) == 0 {
		return
	}

	var users []*User
	if err := json.Unmarshal(content, &users); err != nil {
		return
	}

	for _, user := range users {
		m.users[user.ID] = user
	}
}

// saveUsers 保存用户数据
func (m *UserManager) saveUsers() error {
	var users []*User
	for _, user := range m.users {
		users = append(users, user)
	}

	content, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.dataPath, content, 0644)
}
