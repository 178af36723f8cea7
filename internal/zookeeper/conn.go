// internal/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
)

// Conn 是 zk.Conn 的薄封装，集中管理会话参数。
type Conn struct {
	*zk.Conn
}

// Connect 建立 ZooKeeper 会话。sessionTimeout 决定了持锁进程崩溃后
// 临时节点（也就是锁）多久被释放。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn}, nil
}
