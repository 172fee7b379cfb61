package service

import (
	"errors"

	"Campus_Hub/internal/pkg"

	"gorm.io/gorm"
)

// notFound 记录不存在时转为 NotFound，其余错误原样返回
func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkg.NotFound("%s", msg)
	}
	return err
}

// conflict 唯一键冲突转为 Conflict
func conflict(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkg.Conflict("%s", msg)
	}
	return err
}
