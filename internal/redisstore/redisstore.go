// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package redisstore keeps OTP records in Redis, one hash per subject.
package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const defaultPrefix = "otp:"

// ErrNotFound is returned when a subject has no record.
var ErrNotFound = errors.New("otp record not found")

// consumeScript flips consumed on the subject's record when code matches, the
// record is unconsumed and expires after now. Lua scripts run atomically.
var consumeScript = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'code', 'consumed', 'expires_at')
if not rec[1] then
	return 0
end
if rec[1] ~= ARGV[1] or rec[2] ~= '0' or tonumber(rec[3]) <= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'consumed', '1', 'consumed_at', ARGV[2])
return 1
`)

// Store implements the OTP store on a Redis client.
type Store struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// New creates a Store. Keys live until expiry plus retention, after which
// Redis removes them on its own.
func New(client *redis.Client, retention time.Duration) *Store {
	return &Store{
		client:    client,
		prefix:    defaultPrefix,
		retention: retention,
	}
}

// Connect parses url, creates a client and waits for it to answer PING,
// retrying with capped Fibonacci backoff until ctx is done.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(8, b)

	err = retry.Do(ctx, b, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (s *Store) key(subjectID string) string {
	return s.prefix + subjectID
}

// DeleteSubjectOTPs removes the subject's record, if any.
func (s *Store) DeleteSubjectOTPs(ctx context.Context, subjectID string) error {
	return s.client.Del(ctx, s.key(subjectID)).Err()
}

// InsertOTP writes rec as the subject's only record.
func (s *Store) InsertOTP(ctx context.Context, rec *models.OTPRecord) error {
	key := s.key(rec.SubjectID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"id", rec.ID,
			"code", rec.Code,
			"consumed", boolField(rec.Consumed),
			"expires_at", rec.ExpiresAt.UnixMilli(),
			"created_at", rec.CreatedAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt.Add(s.retention))
		return nil
	})
	return err
}

// ConsumeOTP atomically marks the subject's record consumed when it matches.
func (s *Store) ConsumeOTP(ctx context.Context, subjectID, code string, now time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{s.key(subjectID)}, code, now.UnixMilli()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LatestOTP returns the subject's record.
func (s *Store) LatestOTP(ctx context.Context, subjectID string) (*models.OTPRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(subjectID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return parseRecord(subjectID, fields)
}

func parseRecord(subjectID string, fields map[string]string) (*models.OTPRecord, error) {
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, err
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, err
	}

	rec := &models.OTPRecord{
		ID:        fields["id"],
		SubjectID: subjectID,
		Code:      fields["code"],
		Consumed:  fields["consumed"] == "1",
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
		CreatedAt: time.UnixMilli(createdAt).UTC(),
	}
	if v, ok := fields["consumed_at"]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		at := time.UnixMilli(ms).UTC()
		rec.ConsumedAt = &at
	}
	return rec, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
