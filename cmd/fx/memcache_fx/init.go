package memcache_fx

import (
	"go.uber.org/fx"
	mem "voxbill/pkg/memcache"
)

var Module = fx.Provide(provideEventCache)

func provideEventCache() mem.EventCache {
	return mem.NewEventCache()
}
