// internal/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const lockRoot = "/orderflow/order_locks"

// OrderLock 是针对单个订单号的分布式锁。
// 守卫要求每次更新都能看到一致的前置快照，所以同一订单的
// 读-改-写必须串行；跨进程时由这里兜底。
type OrderLock struct {
	conn     *Conn
	path     string // 锁路径，例如 /orderflow/order_locks/ORD-123
	lockNode string // 成功抢到锁后自己创建的顺序节点
}

// NewOrderLock 创建订单锁实例，并确保锁路径存在。
func NewOrderLock(conn *Conn, orderNo string) (*OrderLock, error) {
	if orderNo == "" {
		return nil, errors.New("orderNo is required for an order lock")
	}
	for _, p := range []string{"/orderflow", lockRoot, lockRoot + "/" + orderNo} {
		if _, err := conn.Create(p, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return nil, fmt.Errorf("failed to ensure lock node %s: %w", p, err)
		}
	}
	return &OrderLock{
		conn: conn,
		path: lockRoot + "/" + orderNo,
	}, nil
}

// Lock 抢锁，抢不到时阻塞等待前一个持有者释放。
func (l *OrderLock) Lock() error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 只监听排在自己前面的节点，避免惊群
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			return errors.New("cannot find previous node, something is wrong")
		}
		prevNodePath := l.path + "/" + children[prevNodeIndex]

		_, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			if err == zk.ErrNoNode {
				continue
			}
			return fmt.Errorf("failed to watch previous node: %w", err)
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(30 * time.Second):
			return errors.New("timeout waiting for order lock")
		}
	}
}

// Unlock 释放锁。
func (l *OrderLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}
