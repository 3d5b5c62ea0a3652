package migrations

import (
	"github.com/carepath-academy/carepath/pkg/cache"
	"github.com/carepath-academy/carepath/pkg/migration"
	"github.com/carepath-academy/carepath/pkg/queue"
)

func init() {
	migration.Register("20260301000100_create_kv_entries_table", table(&cache.Entry{}, "kv_entries"))
	migration.Register("20260301000101_create_failed_jobs_table", table(&queue.FailedJobRecord{}, "failed_jobs"))
}
