package middleware

import (
	"context"
	"reflect"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ==================== 操作员上下文 ====================

type operatorKey struct{}

// Operator 发起请求的 CRM 操作员
type Operator struct {
	UserID   int64
	Username string
}

// WithOperator 把操作员写入 context
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// OperatorFrom 读取操作员；未认证的请求返回 false
func OperatorFrom(ctx context.Context) (Operator, bool) {
	if ctx == nil {
		return Operator{}, false
	}
	op, ok := ctx.Value(operatorKey{}).(Operator)
	return op, ok && op.UserID > 0
}

// AuditContext 把认证得到的操作员写入 request context，
// 提交记录落库时由 GORM 回调填充 CreatedBy/UpdatedBy
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := GetUserID(c); userID > 0 {
			ctx := WithOperator(c.Request.Context(), Operator{UserID: userID, Username: GetUsername(c)})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// ==================== GORM 回调 ====================

// RegisterAuditCallbacks 注册 GORM 审计回调
// 创建时写 CreatedBy + UpdatedBy，更新时只写 UpdatedBy
func RegisterAuditCallbacks(db *gorm.DB) error {
	err := db.Callback().Create().Before("gorm:create").
		Register("audit:create", stampOperator("CreatedBy", "UpdatedBy"))
	if err != nil {
		return err
	}
	return db.Callback().Update().Before("gorm:update").
		Register("audit:update", stampOperator("UpdatedBy"))
}

func stampOperator(fields ...string) func(tx *gorm.DB) {
	return func(tx *gorm.DB) {
		op, ok := OperatorFrom(tx.Statement.Context)
		if !ok || tx.Statement.Schema == nil {
			return
		}
		for _, name := range fields {
			if f := tx.Statement.Schema.LookUpField(name); f != nil {
				fillZero(tx, f, op.UserID)
			}
		}
	}
}

// fillZero 仅在字段为零值时写入，批量创建时逐行处理
func fillZero(tx *gorm.DB, field *schema.Field, value int64) {
	ctx := tx.Statement.Context
	rv := tx.Statement.ReflectValue

	rows := []reflect.Value{rv}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		rows = rows[:0]
		for i := 0; i < rv.Len(); i++ {
			rows = append(rows, reflect.Indirect(rv.Index(i)))
		}
	}
	for _, row := range rows {
		if row.Kind() != reflect.Struct {
			continue
		}
		if _, zero := field.ValueOf(ctx, row); zero {
			_ = field.Set(ctx, row, value)
		}
	}
}
