package redis

import (
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

type Key struct {
	// Prefix - Helps better grouping and searching
	// i.e attribution_report + method
	Prefix string
	// Suffix - optional
	Suffix string
}

var (
	ErrorInvalidPrefix = errors.New("invalid key prefix")
	ErrorInvalidKey    = errors.New("invalid redis cache key")
	ErrorEmptyValue    = errors.New("empty cache key value")
)

func NewKey(prefix string, suffix string) (*Key, error) {
	if prefix == "" {
		return nil, ErrorInvalidPrefix
	}

	return &Key{Prefix: prefix, Suffix: suffix}, nil
}

func (key *Key) Key() (string, error) {
	if key.Prefix == "" {
		return "", ErrorInvalidPrefix
	}

	// key: i.e, attribution_report:Linear:1589068800:1589155199
	if key.Suffix == "" {
		return key.Prefix, nil
	}
	return fmt.Sprintf("%s:%s", key.Prefix, key.Suffix), nil
}

// NewPool - Connection pool for the redis at host:port.
func NewPool(host string, port int) *redis.Pool {
	addr := fmt.Sprintf("%s:%d", host, port)
	return &redis.Pool{
		MaxIdle:     50,
		MaxActive:   300,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Cache - String cache on a redis pool.
type Cache struct {
	pool *redis.Pool
}

func New(pool *redis.Pool) *Cache {
	return &Cache{pool: pool}
}

// IsCacheMiss - True when the error is returned for a missing key on Get.
func IsCacheMiss(err error) bool {
	return err == redis.ErrNil
}

func (c *Cache) Set(key *Key, value string, expiryInSecs int64) error {
	if key == nil {
		return ErrorInvalidKey
	}

	if value == "" {
		return ErrorEmptyValue
	}

	cKey, err := key.Key()
	if err != nil {
		return err
	}

	redisConn := c.pool.Get()
	defer redisConn.Close()

	if expiryInSecs == 0 {
		_, err = redisConn.Do("SET", cKey, value)
	} else {
		_, err = redisConn.Do("SET", cKey, value, "EX", expiryInSecs)
	}

	return err
}

func (c *Cache) Get(key *Key) (string, error) {
	if key == nil {
		return "", ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return "", err
	}

	redisConn := c.pool.Get()
	defer redisConn.Close()

	return redis.String(redisConn.Do("GET", cKey))
}
