package config

import "sync"

// The schedule config is read on every planning pass and approval batch but
// changes rarely, so it is cached process-wide. Invalidate drops the cache;
// tests and the reload endpoint call it after rewriting the file.
var (
	cacheMu     sync.RWMutex
	cached      *ScheduleConfig
	cachedWhere string
)

// Load returns the schedule config for a workspace, reading the file at most
// once until Invalidate is called or the workspace changes.
func Load(workspace string) (*ScheduleConfig, error) {
	path := Path(workspace)
	cacheMu.RLock()
	if cached != nil && cachedWhere == path {
		cfg := cached
		cacheMu.RUnlock()
		return cfg, nil
	}
	cacheMu.RUnlock()

	cfg, err := FromFile(path)
	if err != nil {
		return nil, err
	}
	cacheMu.Lock()
	cached = cfg
	cachedWhere = path
	cacheMu.Unlock()
	return cfg, nil
}

// Invalidate drops the cached schedule config.
func Invalidate() {
	cacheMu.Lock()
	cached = nil
	cachedWhere = ""
	cacheMu.Unlock()
}
