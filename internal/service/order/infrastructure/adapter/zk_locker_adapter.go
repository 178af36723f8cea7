// internal/service/order/infrastructure/adapter/zk_locker_adapter.go
package adapter

import (
	"context"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/zookeeper"
)

// ZkLockerAdapter 是 port.OrderLocker 的 Zookeeper 实现：
// 同一订单的读-改-写在多实例部署下也必须串行。
type ZkLockerAdapter struct {
	conn *zookeeper.Conn
}

func NewZkLockerAdapter(conn *zookeeper.Conn) *ZkLockerAdapter {
	return &ZkLockerAdapter{conn: conn}
}

// LockOrder 对订单号加锁，返回释放函数。
func (a *ZkLockerAdapter) LockOrder(ctx context.Context, orderNo string) (func(), error) {
	lock, err := zookeeper.NewOrderLock(a.conn, orderNo)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Logger().Warn().Err(err).
				Str("order", orderNo).
				Msg("Failed to release order lock.")
		}
	}, nil
}
