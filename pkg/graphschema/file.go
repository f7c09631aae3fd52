package graphschema

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/graphask/pkg/core"
	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk YAML layout:
//
//	nodes:
//	  Movie:
//	    name: STRING
//	    runtime: INTEGER
//	relationships:
//	  ACTED_IN:
//	    roles: LIST
//	patterns:
//	  - {from: Actor, type: ACTED_IN, to: Movie}
//	exclude: [Migration]
type schemaFile struct {
	Nodes         map[string]map[string]string `yaml:"nodes"`
	Relationships map[string]map[string]string `yaml:"relationships"`
	Patterns      []core.RelPattern            `yaml:"patterns"`
	Exclude       []string                     `yaml:"exclude"`
}

// ReadInfo reads a YAML schema file.
func ReadInfo(path string) (*core.SchemaInfo, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}

	info := &core.SchemaInfo{Patterns: f.Patterns}
	for label, props := range f.Nodes {
		info.Nodes = append(info.Nodes, core.LabelInfo{Label: label, Properties: propertyList(props)})
	}
	for relType, props := range f.Relationships {
		info.Relationships = append(info.Relationships, core.RelTypeInfo{Type: relType, Properties: propertyList(props)})
	}
	return info, f.Exclude, nil
}

func propertyList(props map[string]string) []core.PropertyInfo {
	out := make([]core.PropertyInfo, 0, len(props))
	for name, typ := range props {
		p := core.PropertyInfo{Name: name}
		if typ != "" {
			p.Types = []string{typ}
		}
		out = append(out, p)
	}
	return out
}

// LoadFile builds a snapshot directly from a YAML schema file, for offline
// validation.
func LoadFile(path string) (*Snapshot, error) {
	info, exclude, err := ReadInfo(path)
	if err != nil {
		return nil, err
	}
	snap := FromInfo(info, exclude)
	snap.Version = 1
	snap.FetchedAt = time.Now()
	return snap, nil
}

// FileIntrospector serves schema information from a YAML file instead of
// the live store.
type FileIntrospector struct {
	Path string
}

// Introspect implements Introspector. Labels listed under the file's
// exclude key are removed here, before the cache applies its own filter.
func (f *FileIntrospector) Introspect(_ context.Context) (*core.SchemaInfo, error) {
	info, exclude, err := ReadInfo(f.Path)
	if err != nil {
		return nil, err
	}
	if len(exclude) == 0 {
		return info, nil
	}
	snap := FromInfo(info, exclude)
	out := &core.SchemaInfo{Patterns: snap.Patterns}
	for _, l := range snap.Labels {
		out.Nodes = append(out.Nodes, core.LabelInfo{Label: l, Properties: snap.NodeProps[l]})
	}
	for _, t := range snap.RelTypes {
		out.Relationships = append(out.Relationships, core.RelTypeInfo{Type: t, Properties: snap.RelProps[t]})
	}
	return out, nil
}

// Watch refreshes cache whenever the schema file at path changes. Events
// are debounced; the directory is watched so editors that replace the file
// by rename are handled. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, cache *Cache, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				logger.Debug("schema file changed, refreshing", "file", event.Name)
				if _, err := cache.Refresh(ctx); err != nil {
					logger.Error("schema refresh failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
