package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/metrics"
)

var validate = func() *validator.Validate {
	v := validator.New()
	// Same tags gin uses for request binding, so one struct serves both.
	v.SetTagName("binding")
	return v
}()

// Validate checks a request struct and reports every failing field.
func Validate(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.BadRequest("invalid request", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return apperrors.BadRequest("validation failed: "+strings.Join(fields, "; "), err)
}

// CheckVersion rejects a request made against an outdated copy. expected == 0
// means the caller did not send a version.
func CheckVersion(resource string, expected, actual int64) error {
	if expected != 0 && expected != actual {
		return apperrors.Conflict(resource, expected, actual)
	}
	return nil
}

// Bulk applies fn to every distinct id and reports each outcome. Once ctx
// is done the remaining ids fail with the context error.
func Bulk(ctx context.Context, ids []uuid.UUID, fn func(context.Context, uuid.UUID) error) []model.Outcome {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]model.Outcome, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		err := ctx.Err()
		if err == nil {
			err = fn(ctx, id)
		}
		o := model.Outcome{ID: id, Success: err == nil}
		if err != nil {
			o.Error = err.Error()
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				o.Code = appErr.HTTPStatus()
				o.Error = appErr.Message
			}
		}
		out = append(out, o)
	}
	return out
}

// StatsCache memoises a stats reducer per store revision. Entries are also
// bucketed by time so rolling windows do not go stale for longer than ttl.
type StatsCache[S any] struct {
	name    string
	ttl     time.Duration
	cache   *gocache.Cache
	metrics *metrics.Metrics
}

func NewStatsCache[S any](name string, ttl time.Duration, m *metrics.Metrics) *StatsCache[S] {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &StatsCache[S]{name: name, ttl: ttl, cache: gocache.New(ttl, 2*ttl), metrics: m}
}

func (c *StatsCache[S]) Get(revision uint64, now time.Time, compute func() S) S {
	key := fmt.Sprintf("%d:%d", revision, now.Truncate(c.ttl).Unix())
	if v, ok := c.cache.Get(key); ok {
		c.metrics.StatsCache.WithLabelValues(c.name, "hit").Inc()
		return v.(S)
	}
	c.metrics.StatsCache.WithLabelValues(c.name, "miss").Inc()
	s := compute()
	c.cache.SetDefault(key, s)
	return s
}
