package vocabulary

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/redis"
)

// getOrCreateScript runs atomically on the server, so two workers (or two
// processes) asking for the same new term cannot both allocate.
var getOrCreateScript = pkgredis.NewScript(`
local id = redis.call('HGET', KEYS[1], ARGV[1])
if id then
	return tonumber(id)
end
id = redis.call('INCR', KEYS[2]) - 1
redis.call('HSET', KEYS[1], ARGV[1], id)
return id
`)

// seedScript copies stored ids into the hash and moves the counter past the
// largest of them. A term already present under another id aborts the
// batch.
var seedScript = pkgredis.NewScript(`
local next = tonumber(redis.call('GET', KEYS[2]) or '0')
local added = 0
for i = 1, #ARGV, 2 do
	local id = tonumber(ARGV[i + 1])
	local current = redis.call('HGET', KEYS[1], ARGV[i])
	if not current then
		redis.call('HSET', KEYS[1], ARGV[i], id)
		added = added + 1
	elseif tonumber(current) ~= id then
		return redis.error_reply('term ' .. ARGV[i] .. ' has id ' .. current)
	end
	if id >= next then
		next = id + 1
	end
end
redis.call('SET', KEYS[2], next)
return added
`)

const (
	defaultCacheSize = 1 << 16
	seedBatch        = 512
)

// Redis keeps the vocabulary in a Redis hash (<prefix>:terms) with the next
// id in <prefix>:next. Ids never change once assigned, so resolved terms are
// cached locally.
type Redis struct {
	client   *pkgredis.Client
	termsKey string
	nextKey  string
	cache    *lru.Cache[string, index.TermID]
}

func NewRedis(client *pkgredis.Client, keyPrefix string, cacheSize int) (*Redis, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, index.TermID](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating vocabulary cache: %w", err)
	}
	return &Redis{
		client:   client,
		termsKey: keyPrefix + ":terms",
		nextKey:  keyPrefix + ":next",
		cache:    cache,
	}, nil
}

func (r *Redis) GetOrCreate(ctx context.Context, term string) (index.TermID, error) {
	if id, ok := r.cache.Get(term); ok {
		return id, nil
	}
	raw, err := r.client.RunInt(ctx, getOrCreateScript, []string{r.termsKey, r.nextKey}, term)
	if err != nil {
		return 0, fmt.Errorf("%w: term %q: %v", apperrors.ErrVocabulary, term, err)
	}
	id := index.TermID(raw)
	r.cache.Add(term, id)
	return id, nil
}

// Snapshot reads the complete vocabulary back from Redis.
func (r *Redis) Snapshot(ctx context.Context) (map[string]index.TermID, error) {
	fields, err := r.client.HGetAll(ctx, r.termsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: reading vocabulary: %v", apperrors.ErrVocabulary, err)
	}
	out := make(map[string]index.TermID, len(fields))
	for term, raw := range fields {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: term %q has id %q", apperrors.ErrVocabulary, term, raw)
		}
		out[term] = index.TermID(id)
	}
	return out, nil
}

// Reconcile checks the Redis vocabulary against the ids in stored and
// copies across any term Redis does not know yet. It fails with
// ErrVocabulary when the two disagree on a term or an id, so a run never
// hands out an id the store already gave to another term.
func (r *Redis) Reconcile(ctx context.Context, stored map[string]index.TermID) (int, error) {
	current, err := r.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	owners := make(map[index.TermID]string, len(current))
	for term, id := range current {
		owners[id] = term
	}
	terms := make([]string, 0, len(stored))
	for term, id := range stored {
		if have, ok := current[term]; ok && have != id {
			return 0, apperrors.Newf(apperrors.ErrVocabulary, "term %q has id %d in redis and %d in the id store", term, have, id)
		}
		if owner, ok := owners[id]; ok && owner != term {
			return 0, apperrors.Newf(apperrors.ErrVocabulary, "term id %d is %q in redis and %q in the id store", id, owner, term)
		}
		terms = append(terms, term)
	}
	sort.Strings(terms)

	added := 0
	for start := 0; start < len(terms); start += seedBatch {
		end := min(start+seedBatch, len(terms))
		args := make([]any, 0, 2*(end-start))
		for _, term := range terms[start:end] {
			args = append(args, term, uint32(stored[term]))
		}
		n, err := r.client.RunInt(ctx, seedScript, []string{r.termsKey, r.nextKey}, args...)
		if err != nil {
			return added, fmt.Errorf("%w: seeding from id store: %v", apperrors.ErrVocabulary, err)
		}
		added += int(n)
	}
	return added, nil
}

// Reset drops the stored vocabulary and the local cache.
func (r *Redis) Reset(ctx context.Context) error {
	r.cache.Purge()
	return r.client.Del(ctx, r.termsKey, r.nextKey)
}
