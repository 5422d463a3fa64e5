package config

import (
	"fmt"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("database.max_conns (%d) must be >= min_conns (%d)",
			c.Database.MaxConns, c.Database.MinConns)
	}

	if err := c.Ingest.validate(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	return nil
}

func (i *IngestConfig) validate() error {
	if i.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", i.BatchSize)
	}
	if i.FlushWorkers <= 0 {
		return fmt.Errorf("flush_workers must be > 0 (got %d)", i.FlushWorkers)
	}
	if i.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be > 0 (got %d)", i.QueueCapacity)
	}
	if i.MergeConcurrency <= 0 {
		return fmt.Errorf("merge_concurrency must be > 0 (got %d)", i.MergeConcurrency)
	}
	return nil
}
