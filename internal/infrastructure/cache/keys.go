package cache

import "regexp"

// Cache and job keys
const (
	KeyCurrentRate  = "Cache:ExchangeLatest"
	KeyRateHistory  = "Cache:ExchangeHistory"
	JobImportLatest = "Job:ExchangeLatest"
	JobCacheJanitor = "Job:CacheJanitor"
)

// PrefixPattern returns a RemoveMatching pattern for every key starting with key
func PrefixPattern(key string) string {
	return "^" + regexp.QuoteMeta(key)
}
