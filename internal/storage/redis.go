package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BetterCallFirewall/aegisx/internal/models"
)

// Ключи в Redis. Формат унаследован от первых версий системы и менять его
// нельзя без миграции накопленных отпечатков.
const (
	fingerprintKey = "webagent:fingerprints"
	queueKey       = "webagent:tasks:initial"
	hostParamsFmt  = "webagent:host:%s:params"
)

// RedisStore объединяет три внешних глобальных структуры: множество
// отпечатков для дедупликации, очередь задач и индекс параметров по хостам.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient нужен тестам (miniredis) и встраиванию.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// IsDuplicate проверяет, встречался ли отпечаток раньше.
func (s *RedisStore) IsDuplicate(ctx context.Context, fingerprint string) (bool, error) {
	return s.client.SIsMember(ctx, fingerprintKey, fingerprint).Result()
}

// AddFingerprint фиксирует новый отпечаток.
func (s *RedisStore) AddFingerprint(ctx context.Context, fingerprint string) error {
	return s.client.SAdd(ctx, fingerprintKey, fingerprint).Err()
}

// PushTask кладёт задачу в хвост очереди сканирования.
func (s *RedisStore) PushTask(ctx context.Context, task *models.TaskPacket) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return s.client.RPush(ctx, queueKey, raw).Err()
}

// PopTask блокирующе снимает задачу с головы очереди. Возвращает (nil, nil)
// по истечении таймаута опроса - вызывающий просто повторяет попытку, что
// даёт точку кооперативной остановки.
func (s *RedisStore) PopTask(ctx context.Context, timeout time.Duration) (*models.TaskPacket, error) {
	res, err := s.client.BLPop(ctx, timeout, queueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BLPop возвращает пару [ключ, значение]
	if len(res) < 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply: %v", res)
	}
	var task models.TaskPacket
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// QueueLength возвращает текущую глубину очереди задач.
func (s *RedisStore) QueueLength(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, queueKey).Result()
}

// AddHostParams добавляет имена параметров в индекс хоста.
func (s *RedisStore) AddHostParams(ctx context.Context, host string, params []string) error {
	if host == "" || len(params) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(params))
	for _, p := range params {
		if p != "" {
			members = append(members, p)
		}
	}
	if len(members) == 0 {
		return nil
	}
	return s.client.SAdd(ctx, fmt.Sprintf(hostParamsFmt, host), members...).Err()
}

// HostParams возвращает все имена параметров, когда-либо наблюдавшиеся
// у данного хоста. Порядок не гарантируется.
func (s *RedisStore) HostParams(ctx context.Context, host string) ([]string, error) {
	return s.client.SMembers(ctx, fmt.Sprintf(hostParamsFmt, host)).Result()
}
