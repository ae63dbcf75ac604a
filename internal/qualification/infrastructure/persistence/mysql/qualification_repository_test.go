package mysql

import (
	"errors"
	"fmt"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKey(fmt.Errorf("create qualification: %w", gorm.ErrDuplicatedKey)))

	// 未开启 TranslateError 时驱动直接抛 1062
	raw := &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry 'user-1' for key 'uk_user_id'"}
	assert.True(t, isDuplicateKey(raw))
	assert.True(t, isDuplicateKey(fmt.Errorf("create qualification: %w", raw)))

	assert.False(t, isDuplicateKey(&gomysql.MySQLError{Number: 1213, Message: "Deadlock found"}))
	assert.False(t, isDuplicateKey(errors.New("connection reset by peer")))
	assert.False(t, isDuplicateKey(nil))
}
