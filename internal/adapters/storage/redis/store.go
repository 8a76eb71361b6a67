// Package redis provides the Redis submission store.
//
// Key layout under the configured prefix:
//
//	{prefix}:submissions                   ZSET   id scored by received time (ms)
//	{prefix}:submission:{id}               HASH   id, name, email, status, received_at
//	{prefix}:emails                        HASH   email -> id
//	{prefix}:settings:applications_limit   STRING quota
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/application-intake/internal/domain"
)

// createScript checks the quota and the email index and inserts in one step.
// It returns {status, countBefore}: 0 quota full, 1 duplicate email, 2 created.
var createScript = redis.NewScript(`
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[1]) then
	return {0, count}
end
if redis.call('HEXISTS', KEYS[2], ARGV[2]) == 1 then
	return {1, count}
end
redis.call('HSET', KEYS[3], 'id', ARGV[3], 'name', ARGV[4], 'email', ARGV[2], 'status', ARGV[5], 'received_at', ARGV[6])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
redis.call('ZADD', KEYS[1], ARGV[7], ARGV[3])
return {2, count}
`)

const (
	createQuotaFull = 0
	createDuplicate = 1
	createOK        = 2
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, domain.NewUnavailableError("redis", err.Error())
	}

	return rdb, nil
}

// Store persists submissions and settings in Redis.
type Store struct {
	rdb          redis.UniversalClient
	prefix       string
	defaultLimit int
}

// New creates a store. defaultLimit is reported until a limit is set.
func New(rdb redis.UniversalClient, prefix string, defaultLimit int) *Store {
	return &Store{rdb: rdb, prefix: prefix, defaultLimit: defaultLimit}
}

func (s *Store) submissionsKey() string { return s.prefix + ":submissions" }

func (s *Store) emailsKey() string { return s.prefix + ":emails" }

func (s *Store) limitKey() string { return s.prefix + ":settings:applications_limit" }

func (s *Store) submissionKey(id string) string { return s.prefix + ":submission:" + id }

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "redis"
}

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return domain.NewUnavailableError(s.Name(), err.Error())
	}

	return nil
}

// Count implements ports.SubmissionStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, s.submissionsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("counting submissions: %w", err)
	}

	return int(n), nil
}

// ExistsByEmail implements ports.SubmissionStore.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ok, err := s.rdb.HExists(ctx, s.emailsKey(), email).Result()
	if err != nil {
		return false, fmt.Errorf("looking up email: %w", err)
	}

	return ok, nil
}

// Create implements ports.SubmissionStore.
func (s *Store) Create(ctx context.Context, sub *domain.Submission, limit int) (int, error) {
	res, err := createScript.Run(ctx, s.rdb,
		[]string{s.submissionsKey(), s.emailsKey(), s.submissionKey(sub.ID)},
		limit,
		sub.Email,
		sub.ID,
		sub.Name,
		sub.Status,
		sub.ReceivedAt.UTC().Format(time.RFC3339Nano),
		sub.ReceivedAt.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("creating submission: %w", err)
	}

	if len(res) != 2 {
		return 0, fmt.Errorf("creating submission: unexpected script reply %v", res)
	}

	before := int(res[1])

	switch res[0] {
	case createOK:
		return before, nil
	case createQuotaFull:
		return before, domain.NewQuotaExceededError("submission", limit)
	case createDuplicate:
		return before, domain.NewConflictError("submission", "email already exists")
	default:
		return before, fmt.Errorf("creating submission: unknown script status %d", res[0])
	}
}

// List implements ports.SubmissionStore. Paging resumes after the rank of
// the cursor id, which the sorted set orders by score then member.
func (s *Store) List(ctx context.Context, query domain.ListQuery) ([]*domain.Submission, error) {
	if query.Limit <= 0 {
		return []*domain.Submission{}, nil
	}

	ids, err := s.pageIDs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}

	pipe := s.rdb.Pipeline()

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.submissionKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("loading submissions: %w", err)
	}

	subs := make([]*domain.Submission, 0, len(cmds))

	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("loading submission: %w", err)
		}

		if len(fields) == 0 {
			continue
		}

		sub, err := decodeSubmission(fields)
		if err != nil {
			return nil, err
		}

		subs = append(subs, sub)
	}

	return subs, nil
}

func (s *Store) pageIDs(ctx context.Context, query domain.ListQuery) ([]string, error) {
	key := s.submissionsKey()
	count := int64(query.Limit)

	if !query.HasCursor() {
		return s.rdb.ZRevRange(ctx, key, 0, count-1).Result()
	}

	rank, err := s.rdb.ZRevRank(ctx, key, query.AfterID).Result()

	switch {
	case err == nil:
		return s.rdb.ZRevRange(ctx, key, rank+1, rank+count).Result()
	case errors.Is(err, redis.Nil):
		return s.rdb.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
			Max:   "(" + strconv.FormatInt(query.AfterReceivedAt.UnixMilli(), 10),
			Min:   "-inf",
			Count: count,
		}).Result()
	default:
		return nil, err
	}
}

func decodeSubmission(fields map[string]string) (*domain.Submission, error) {
	receivedAt, err := time.Parse(time.RFC3339Nano, fields["received_at"])
	if err != nil {
		return nil, fmt.Errorf("decoding submission %q: %w", fields["id"], err)
	}

	return &domain.Submission{
		ID:         fields["id"],
		Name:       fields["name"],
		Email:      fields["email"],
		Status:     fields["status"],
		ReceivedAt: receivedAt,
	}, nil
}

// ApplicationsLimit implements ports.SettingsStore.
func (s *Store) ApplicationsLimit(ctx context.Context) (int, error) {
	raw, err := s.rdb.Get(ctx, s.limitKey()).Result()

	switch {
	case errors.Is(err, redis.Nil):
		return s.defaultLimit, nil
	case err != nil:
		return 0, fmt.Errorf("reading applications limit: %w", err)
	}

	return domain.ParseApplicationsLimit(raw, s.defaultLimit), nil
}

// SetApplicationsLimit implements ports.SettingsStore.
func (s *Store) SetApplicationsLimit(ctx context.Context, limit int) error {
	if limit < 0 {
		return domain.NewValidationErrorWithValue("applicationsLimit", "must be zero or greater", limit)
	}

	if err := s.rdb.Set(ctx, s.limitKey(), strconv.Itoa(limit), 0).Err(); err != nil {
		return fmt.Errorf("writing applications limit: %w", err)
	}

	return nil
}
