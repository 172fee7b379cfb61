package service

import (
	"context"
	"strings"

	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"
	"Campus_Hub/internal/repository/redis"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type EmailService struct {
	rds     *redis.EmailRepository
	users   *mysql.UserRepository
	mailer  pkg.Mailer
	allowed []string
}

func NewEmailService(db *gorm.DB, rdb *goredis.Client, mailer pkg.Mailer, allowedDomains []string) *EmailService {
	return &EmailService{
		rds:     &redis.EmailRepository{Client: rdb},
		users:   &mysql.UserRepository{DB: db},
		mailer:  mailer,
		allowed: allowedDomains,
	}
}

// SendCode 先写 pending，邮件发出后再转为 confirmed
func (s *EmailService) SendCode(ctx context.Context, scope, email string) error {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return pkg.Validation("invalid email")
	}

	var subject string
	switch scope {
	case redis.ScopeRegister:
		if !pkg.EmailDomainAllowed(email, s.allowed) {
			return pkg.Forbidden("email domain not allowed")
		}
		if _, err := s.users.FindByEmail(ctx, email); err == nil {
			return pkg.Conflict("email already registered")
		} else if !isRecordNotFound(err) {
			return err
		}
		subject = "Registration"
	case redis.ScopeReset:
		if _, err := s.users.FindByEmail(ctx, email); isRecordNotFound(err) {
			// 不暴露邮箱是否注册
			return nil
		} else if err != nil {
			return err
		}
		subject = "Password reset"
	default:
		return pkg.Validation("invalid scope")
	}

	code, err := pkg.RandDigits(6)
	if err != nil {
		return err
	}
	if err := s.rds.SavePending(ctx, scope, email, code); err != nil {
		return err
	}
	html := pkg.EmailCodeHTML(strings.ToLower(subject), code, redis.DefaultEmailCodeTTL)
	if err := s.mailer.Send(email, subject+" code", html); err != nil {
		_ = s.rds.DeletePending(ctx, scope, email)
		return err
	}
	if err := s.rds.Confirm(ctx, scope, email); err != nil {
		_ = s.rds.DeletePending(ctx, scope, email)
		return err
	}
	return nil
}

// VerifyCode 校验成功后一次性删除
func (s *EmailService) VerifyCode(ctx context.Context, scope, email, code string) (bool, error) {
	email = normalizeEmail(email)
	val, err := s.rds.GetConfirmed(ctx, scope, email)
	if err != nil {
		return false, pkg.Validation("verification code expired or not found")
	}
	if val != code {
		return false, nil
	}
	if err := s.rds.DeleteConfirmed(ctx, scope, email); err != nil {
		return false, err
	}
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
