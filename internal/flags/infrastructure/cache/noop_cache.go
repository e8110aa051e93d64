package cache

import (
	"context"
	"time"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

// NoopDecisionCache never stores anything; every evaluation reads the store.
type NoopDecisionCache struct{}

func (NoopDecisionCache) Get(context.Context, string) (bool, bool, error) { return false, false, nil }
func (NoopDecisionCache) Set(context.Context, string, bool, time.Duration) error { return nil }
func (NoopDecisionCache) Delete(context.Context, string) error { return nil }
func (NoopDecisionCache) DeleteByPrefix(context.Context, string) error { return nil }

var _ domain.DecisionCache = NoopDecisionCache{}
