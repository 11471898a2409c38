package worker

import (
	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithCatalog sets the metric tables the worker accepts.
func WithCatalog(c model.Catalog) Option {
	return func(w *InMemoryWorker) {
		if c != nil {
			w.catalog = c
		}
	}
}

// WithRefresher sets what the worker notifies after storing a table.
func WithRefresher(r Refresher) Option {
	return func(w *InMemoryWorker) {
		if r != nil {
			w.refresher = r
		}
	}
}
