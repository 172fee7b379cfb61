package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"
	"Campus_Hub/internal/repository/redis"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserOptions struct {
	AllowedEmailDomains []string
	SuperUserEmail      string
}

type UserView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsSuper   bool   `json:"isSuper"`
	CreatedAt string `json:"createdAt"`
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Code     string
}

// UserService 账号、登录态和身份解析
type UserService struct {
	users    *mysql.UserRepository
	tokens   *redis.UserRepository
	emailSvc *EmailService
	opts     UserOptions
}

func NewUserService(db *gorm.DB, rdb *goredis.Client, emailSvc *EmailService, opts UserOptions) *UserService {
	return &UserService{
		users:    &mysql.UserRepository{DB: db},
		tokens:   &redis.UserRepository{Client: rdb},
		emailSvc: emailSvc,
		opts:     opts,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*UserView, error) {
	email := normalizeEmail(in.Email)
	if !pkg.EmailDomainAllowed(email, s.opts.AllowedEmailDomains) {
		return nil, pkg.Forbidden("email domain not allowed")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > 64 {
		return nil, pkg.Validation("name must be 1-64 characters")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}
	// 验证code是否正确
	ok, err := s.emailSvc.VerifyCode(ctx, redis.ScopeRegister, email, in.Code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkg.Validation("invalid verification code")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:     name,
		Password: string(hash),
		Email:    email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, conflict(err, "email already registered")
	}
	v := s.toUserView(user)
	return &v, nil
}

// Login 新 token 覆盖 redis 里的旧 token，其他端随之失效
func (s *UserService) Login(ctx context.Context, email, password string) (*pkg.Pair, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isRecordNotFound(err) {
			return nil, pkg.Unauthenticated("invalid email or password")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, pkg.Unauthenticated("invalid email or password")
	}
	return s.issue(ctx, user)
}

func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	return s.tokens.DeleteUserToken(ctx, userID)
}

// Refresh 重新读取用户，名字和超级用户标记以库里为准
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	id, err := pkg.ParseRefresh(refreshToken)
	if err != nil {
		return nil, pkg.Unauthenticated("%s", err.Error())
	}
	user, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, pkg.Unauthenticated("user not found")
		}
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *UserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	ok, err := s.emailSvc.VerifyCode(ctx, redis.ScopeReset, email, code)
	if err != nil {
		return err
	}
	if !ok {
		return pkg.Validation("invalid verification code")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return notFound(err, "user not found")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user, string(hash)); err != nil {
		return err
	}
	return s.Logout(ctx, user.ID)
}

// ChangePassword 登录态修改密码，成功后需要重新登录
func (s *UserService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return notFound(err, "user not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return pkg.Validation("old password is incorrect")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user, string(hash)); err != nil {
		return err
	}
	return s.Logout(ctx, userID)
}

func (s *UserService) Me(ctx context.Context, userID uint64) (*UserView, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	v := s.toUserView(user)
	return &v, nil
}

// Authenticate 校验 access token 且必须是 redis 中当前有效的那个，通过后续期
func (s *UserService) Authenticate(ctx context.Context, token string) (pkg.Identity, error) {
	claims, err := pkg.ParseAccess(token)
	if err != nil {
		return pkg.Identity{}, pkg.Unauthenticated("invalid or expired token")
	}
	current, err := s.tokens.GetUserToken(ctx, claims.UserID)
	if err != nil || current != token {
		return pkg.Identity{}, pkg.Unauthenticated("account has been logged in elsewhere")
	}
	if err := s.tokens.ExtendUserToken(ctx, claims.UserID); err != nil {
		return pkg.Identity{}, err
	}
	return claims.Identity, nil
}

func (s *UserService) issue(ctx context.Context, user *model.User) (*pkg.Pair, error) {
	pair, err := pkg.GeneratePair(s.identity(user))
	if err != nil {
		return nil, err
	}
	if err := s.tokens.AddUserToken(ctx, user.ID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *UserService) identity(u *model.User) pkg.Identity {
	return pkg.Identity{UserID: u.ID, Name: u.Name, IsSuper: s.isSuper(u)}
}

func (s *UserService) isSuper(u *model.User) bool {
	return u.IsSuper || (s.opts.SuperUserEmail != "" && strings.EqualFold(u.Email, s.opts.SuperUserEmail))
}

func (s *UserService) toUserView(u *model.User) UserView {
	return UserView{
		ID:        pkg.FormatID(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		IsSuper:   s.isSuper(u),
		CreatedAt: pkg.FormatTime(u.CreatedAt),
	}
}

func checkPassword(p string) error {
	if len(p) < 8 || len(p) > 72 {
		return pkg.Validation("password must be 8-72 characters")
	}
	return nil
}
