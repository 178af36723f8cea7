// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	gosqlmysql "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"orderflow/internal/service/order/domain"
)

// mysqlDuplicateEntry 是 MySQL 唯一键冲突的错误码。
const mysqlDuplicateEntry = 1062

// ErrOrderAlreadyExists 表示并发创建撞上了 order_no 唯一索引。
var ErrOrderAlreadyExists = errors.New("order already exists")

// GormOrderRepository 是 domain.OrderRepository 的 GORM/MySQL 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建仓储实例。
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// OpenMysql 按 DSN 建库连接并自动迁移订单表。
func OpenMysql(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mysql connection")
	}
	if err := db.AutoMigrate(&OrderModel{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate orders table")
	}
	return db, nil
}

// Save 以 order_no 为冲突键做 upsert：协调器的更新路径总是整单落库。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model, err := ToOrderModel(order)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing OrderModel
		err := tx.Where("order_no = ?", model.OrderNo).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			createErr := tx.Create(model).Error
			var mysqlErr *gosqlmysql.MySQLError
			if errors.As(createErr, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
				return ErrOrderAlreadyExists
			}
			return createErr
		case err != nil:
			return err
		default:
			model.ID = existing.ID
			model.CreatedAt = existing.CreatedAt
			if model.UpdatedAt.IsZero() {
				model.UpdatedAt = time.Now()
			}
			return tx.Save(model).Error
		}
	})
	return errors.Wrapf(err, "failed to save order %s", model.OrderNo)
}

// FindByOrderNo 按订单号查找，未命中时返回领域层的 ErrOrderNotFound。
func (r *GormOrderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return ToDomainOrder(&model)
}

// Delete 物理删除订单。终态校验由应用层的 readyToDelete 守卫负责。
func (r *GormOrderRepository) Delete(ctx context.Context, orderNo string) error {
	result := r.db.WithContext(ctx).Where("order_no = ?", orderNo).Delete(&OrderModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// FindPendingBefore 返回在 cutoff 之前创建且仍处于 PENDING 的订单号，
// 供超时巡检使用。
func (r *GormOrderRepository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var orderNos []string
	err := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("status = ? AND created_at < ?", string(domain.StatusPending), cutoff).
		Order("created_at").
		Limit(limit).
		Pluck("order_no", &orderNos).Error
	return orderNos, err
}
