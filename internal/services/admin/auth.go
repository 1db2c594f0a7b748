package admin

import (
	"errors"

	"github.com/gbbspro/gbbs-archive/internal/config"
	"github.com/gbbspro/gbbs-archive/internal/models"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"github.com/gbbspro/gbbs-archive/internal/pkg/utils"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthService 用户注册与登录
type AuthService interface {
	Register(username, password, email, role string) (*models.User, error)
	Login(username, password string) (string, *models.User, error)
	GetUser(userID uint64) (*models.User, error)
}

type authService struct {
	userRepo repositories.UserRepository
	cfg      *config.Config
}

var _ AuthService = (*authService)(nil)

// NewAuthService 创建认证服务实例
func NewAuthService(userRepo repositories.UserRepository, cfg *config.Config) AuthService {
	return &authService{userRepo: userRepo, cfg: cfg}
}

func (s *authService) Register(username, password, email, role string) (*models.User, error) {
	if username == "" || password == "" || email == "" {
		return nil, xerr.ErrInvalidParams
	}
	if role == "" {
		role = models.RoleSubscriber
	}
	if role != models.RoleAdmin && role != models.RoleEditor && role != models.RoleSubscriber {
		return nil, xerr.ErrInvalidParams
	}

	// 检查用户名是否存在
	if _, err := s.userRepo.GetUserByUsername(username); err == nil {
		return nil, xerr.ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	// 检查邮箱是否存在
	if _, err := s.userRepo.GetUserByEmail(email); err == nil {
		return nil, xerr.ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hashed,
		Email:        email,
		Role:         role,
		Status:       1,
	}
	if err := s.userRepo.CreateUser(user); err != nil {
		return nil, err
	}

	logger.Info("用户注册成功", zap.String("username", user.Username), zap.String("role", user.Role))
	return user, nil
}

func (s *authService) Login(username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, xerr.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, xerr.ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(
		user.ID, user.Username, user.Role,
		s.cfg.JWT.SecretKey, s.cfg.JWT.Issuer, s.cfg.JWT.ExpiresIn,
	)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *authService) GetUser(userID uint64) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
