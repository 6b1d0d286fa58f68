package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrOTPNotFound         = errors.New("otp record not found")
	ErrOTPCodeMismatch     = errors.New("otp code mismatch")
	ErrOTPExpired          = errors.New("otp expired")
	ErrOTPConsumed         = errors.New("otp already consumed")
	ErrOTPRedisUnavailable = errors.New("otp redis unavailable")
)

// consumeOTPLua evaluates a pending OTP record in one step.
// KEYS[1] = record key
// ARGV[1] = submitted code
// ARGV[2] = current unix time in milliseconds
// ARGV[3] = validity window in milliseconds
// ARGV[4] = "1" when a code may authorize only one signup
//
// Returns:
//
//	{id, email, code, createdAt, consumedAt} on success
//	error string: "not_found", "code_mismatch", "expired", "consumed"
var consumeOTPLua = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'id', 'email', 'code', 'createdAt', 'consumedAt')
if not f[3] then
  return {err='not_found'}
end

if f[3] ~= ARGV[1] then
  return {err='code_mismatch'}
end

local nowMs = tonumber(ARGV[2])
local createdAt = tonumber(f[4]) or 0
if nowMs > createdAt + tonumber(ARGV[3]) then
  return {err='expired'}
end

local consumedAt = f[5] or '0'
if ARGV[4] == '1' then
  if (tonumber(consumedAt) or 0) > 0 then
    return {err='consumed'}
  end
  redis.call('HSET', KEYS[1], 'consumedAt', ARGV[2])
  consumedAt = ARGV[2]
end

return {f[1] or '', f[2] or '', f[3], f[4] or '0', consumedAt}
`)

// releaseOTPLua clears the consumed mark left by a signup that did not
// complete. It only touches the record that was consumed.
// KEYS[1] = record key
// ARGV[1] = record id
// ARGV[2] = consumedAt written by that consume, unix milliseconds
//
// Returns 1 when the mark was cleared, 0 otherwise.
var releaseOTPLua = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'id', 'consumedAt')
if f[1] ~= ARGV[1] or f[2] ~= ARGV[2] then
  return 0
end
redis.call('HSET', KEYS[1], 'consumedAt', '0')
return 1
`)

// OTPRecord is the pending verification code issued to one email address.
type OTPRecord struct {
	ID         string
	Email      string
	Code       string
	CreatedAt  time.Time
	ConsumedAt time.Time
}

// Consumed reports whether the record has already authorized a signup.
func (r *OTPRecord) Consumed() bool {
	return r != nil && !r.ConsumedAt.IsZero()
}

// OTPStore keeps at most one OTP record per email in a Redis hash.
type OTPStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewOTPStore returns a store writing under prefix. Records are kept for
// retention so that a late submission reports expiry instead of absence.
func NewOTPStore(redisClient redis.UniversalClient, prefix string, retention time.Duration) *OTPStore {
	if prefix == "" {
		prefix = "cotp"
	}
	if retention <= 0 {
		retention = 15 * time.Minute
	}
	return &OTPStore{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *OTPStore) key(email string) string {
	return s.prefix + ":" + email
}

// Replace drops any record for record.Email and writes record in its place.
func (s *OTPStore) Replace(ctx context.Context, record *OTPRecord) error {
	if record == nil || record.Email == "" || record.Code == "" {
		return errors.New("otp record requires email and code")
	}

	key := s.key(record.Email)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"id", record.ID,
			"email", record.Email,
			"code", record.Code,
			"createdAt", strconv.FormatInt(record.CreatedAt.UnixMilli(), 10),
			"consumedAt", "0",
		)
		pipe.PExpire(ctx, key, s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return nil
}

// Consume checks code against the record for email at time now. With
// singleUse set, a successful check marks the record consumed and any later
// check fails with ErrOTPConsumed.
func (s *OTPStore) Consume(
	ctx context.Context,
	email, code string,
	now time.Time,
	ttl time.Duration,
	singleUse bool,
) (*OTPRecord, error) {
	single := "0"
	if singleUse {
		single = "1"
	}

	result, err := consumeOTPLua.Run(ctx, s.redis,
		[]string{s.key(email)},
		code,
		now.UnixMilli(),
		ttl.Milliseconds(),
		single,
	).Result()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrOTPNotFound
		case "code_mismatch":
			return nil, ErrOTPCodeMismatch
		case "expired":
			return nil, ErrOTPExpired
		case "consumed":
			return nil, ErrOTPConsumed
		default:
			return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
		}
	}

	fields, ok := result.([]interface{})
	if !ok || len(fields) != 5 {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrOTPRedisUnavailable)
	}

	values := make([]string, len(fields))
	for i, v := range fields {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected lua field type", ErrOTPRedisUnavailable)
		}
		values[i] = str
	}

	record, err := decodeOTPFields(values[0], values[1], values[2], values[3], values[4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}

	// Lua string equality is not constant-time.
	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		return nil, ErrOTPCodeMismatch
	}

	return record, nil
}

// Release undoes a single-use Consume of record so the same code can be
// submitted again. It reports false when the stored record was replaced or
// released in the meantime.
func (s *OTPStore) Release(ctx context.Context, record *OTPRecord) (bool, error) {
	if !record.Consumed() {
		return false, nil
	}

	n, err := releaseOTPLua.Run(ctx, s.redis,
		[]string{s.key(record.Email)},
		record.ID,
		strconv.FormatInt(record.ConsumedAt.UnixMilli(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return n == 1, nil
}

// Get returns the stored record for email without changing it.
func (s *OTPStore) Get(ctx context.Context, email string) (*OTPRecord, error) {
	values, err := s.redis.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	if len(values) == 0 {
		return nil, ErrOTPNotFound
	}

	record, err := decodeOTPFields(values["id"], values["email"], values["code"], values["createdAt"], values["consumedAt"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return record, nil
}

// Delete removes the record for email. Missing records are not an error.
func (s *OTPStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return nil
}

func decodeOTPFields(id, email, code, createdAt, consumedAt string) (*OTPRecord, error) {
	created, err := strconv.ParseInt(createdAt, 10, 64)
	if err != nil {
		return nil, errors.New("invalid otp createdAt")
	}

	record := &OTPRecord{
		ID:        id,
		Email:     email,
		Code:      code,
		CreatedAt: time.UnixMilli(created),
	}

	if consumedAt != "" {
		consumed, err := strconv.ParseInt(consumedAt, 10, 64)
		if err != nil {
			return nil, errors.New("invalid otp consumedAt")
		}
		if consumed > 0 {
			record.ConsumedAt = time.UnixMilli(consumed)
		}
	}

	return record, nil
}
