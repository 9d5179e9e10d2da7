package config

import (
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/go-zookeeper/zk"
)

const zkSessionTimeout = 10 * time.Second

// ZookeeperProvider is a koanf provider backed by a single ZooKeeper node
// holding raw YAML.
type ZookeeperProvider struct {
	conn      *zk.Conn
	path      string
	endpoints []string

	closeOnce sync.Once
}

// NewZookeeperProvider connects to the ensemble and returns a provider for
// the given node path.
func NewZookeeperProvider(endpoints []string, path string) (*ZookeeperProvider, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("zookeeper endpoints are required")
	}
	if path == "" {
		return nil, fmt.Errorf("zookeeper path is required")
	}

	conn, _, err := zk.Connect(endpoints, zkSessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	return &ZookeeperProvider{
		conn:      conn,
		path:      path,
		endpoints: endpoints,
	}, nil
}

// ReadBytes reads the node's current content.
func (p *ZookeeperProvider) ReadBytes() ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read from zookeeper path %s: %w", p.path, err)
	}
	return data, nil
}

// Read is unsupported; the provider delivers raw bytes for the YAML parser.
func (p *ZookeeperProvider) Read() (map[string]interface{}, error) {
	return nil, fmt.Errorf("zookeeper provider does not support key/value reads")
}

// Watch re-arms a data watch on the node and invokes the callback for each
// change. It returns when the node is deleted or the watch is lost.
func (p *ZookeeperProvider) Watch(callback func(event interface{}, err error)) error {
	for {
		data, _, eventCh, err := p.conn.GetW(p.path)
		if err != nil {
			callback(nil, fmt.Errorf("failed to watch zookeeper path %s: %w", p.path, err))
			// Back off before re-arming so a missing node doesn't spin.
			time.Sleep(time.Second)
			continue
		}

		event := <-eventCh

		switch event.Type {
		case zk.EventNodeDataChanged:
			callback(data, nil)
		case zk.EventNodeDeleted:
			callback(nil, fmt.Errorf("zookeeper node %s was deleted", p.path))
			return nil
		case zk.EventNotWatching:
			callback(nil, fmt.Errorf("zookeeper watch lost for path %s", p.path))
			return nil
		default:
			slog.Debug("Ignoring zookeeper event", "path", p.path, "type", event.Type)
		}
	}
}

// Close tears down the ZooKeeper session.
func (p *ZookeeperProvider) Close() {
	p.closeOnce.Do(func() {
		if p.conn != nil {
			p.conn.Close()
		}
	})
}
