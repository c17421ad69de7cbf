package yamlconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchOption configures Provider.Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	onReload func(error)
}

// WithDebounce sets how long the file must stay quiet before it is reloaded.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) { o.debounce = d }
}

// OnReload registers a callback receiving the result of every reload.
func OnReload(fn func(error)) WatchOption {
	return func(o *watchOptions) { o.onReload = fn }
}

// Watch reloads the configuration whenever the file changes, until ctx is done.
// The directory is watched rather than the file so that editors replacing the file
// are noticed. Reloads only affect services resolved afterwards.
func (p *Provider) Watch(ctx context.Context, opts ...WatchOption) error {
	o := watchOptions{debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(p.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(p.path)

	timer := time.NewTimer(o.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(o.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("aspect configuration watcher error", zap.Error(err))

		case <-timer.C:
			err := p.LoadConfiguration()
			if err != nil {
				p.logger.Error("failed to reload aspect configuration", zap.String("path", p.path), zap.Error(err))
			}
			if o.onReload != nil {
				o.onReload(err)
			}
		}
	}
}
