// Package watch runs npm package version checks for the items of a Host.
package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/npmwatch/npmwatch/internal/core"
	"github.com/npmwatch/npmwatch/internal/core/registry"
	"github.com/npmwatch/npmwatch/internal/core/version"
)

// Fetcher retrieves registry documents.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (*core.RegistryDocument, error)
}

// History remembers the last latest-version seen per package.
type History interface {
	GetWatchEntry(ctx context.Context, name string) (*core.WatchEntry, error)
	SetWatchEntry(ctx context.Context, entry *core.WatchEntry) error
}

// LookupFunc observes every finished lookup. report is nil when err is set.
type LookupFunc func(query core.PackageQuery, report *core.ChangeReport, err error, elapsed time.Duration)

// Node checks packages against the registry. Items and their queries are
// processed one at a time, in order.
type Node struct {
	Registry Fetcher

	// History is consulted only when Track is set: an empty known version is
	// filled from it and every report is written back.
	History History
	Track   bool

	Logger   *logging.Logger
	OnLookup LookupFunc
	Clock    func() time.Time
}

// Execute processes every item of host. A failed lookup becomes an error
// record when the host continues on failure; otherwise the run stops and the
// failure is returned as an *ItemError. Cancellation always stops the run.
func (n *Node) Execute(ctx context.Context, host Host) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for itemIndex := 0; itemIndex < host.ItemCount(); itemIndex++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		queries, err := Queries(host, itemIndex)
		if err != nil {
			if failErr := n.fail(ctx, host, &ItemError{ItemIndex: itemIndex, Err: err}); failErr != nil {
				return failErr
			}
			continue
		}

		for _, query := range queries {
			report, err := n.Check(ctx, query)
			if err != nil {
				itemErr := &ItemError{
					ItemIndex:   itemIndex,
					PackageName: strings.TrimSpace(query.PackageName),
					Err:         err,
				}
				if failErr := n.fail(ctx, host, itemErr); failErr != nil {
					return failErr
				}
				continue
			}
			host.Emit(core.Record{Report: report}, itemIndex)
		}
	}

	return nil
}

// Check looks up a single package and classifies it against the known version.
func (n *Node) Check(ctx context.Context, query core.PackageQuery) (report *core.ChangeReport, err error) {
	started := n.now()
	defer func() {
		if n.OnLookup != nil {
			n.OnLookup(query, report, err, n.now().Sub(started))
		}
	}()

	name := strings.TrimSpace(query.PackageName)
	if name == "" {
		return nil, ErrMissingPackageName
	}
	if n.Registry == nil {
		return nil, errors.New("registry client is not configured")
	}

	known := strings.TrimSpace(query.KnownVersion)
	if known == "" && n.tracking() {
		entry, err := n.History.GetWatchEntry(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("read watch history: %w", err)
		}
		if entry != nil {
			known = entry.LatestVersion
		}
	}

	doc, err := n.Registry.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	latest := doc.Latest()
	if latest == "" {
		return nil, latestTagNotFound(name)
	}

	changed, changeType := version.Classify(latest, known)
	previous := version.Previous(doc.VersionList(), latest)

	var manifest *core.VersionManifest
	if m, ok := doc.Versions[latest]; ok {
		manifest = &m
	}

	report = &core.ChangeReport{
		PackageName:       name,
		LatestVersion:     latest,
		LatestPublishedAt: doc.PublishedAt(latest),
		HasChanged:        changed,
		ChangeType:        changeType,
		PreviousVersion:   previous,
		NPMURL:            registry.PackagePage(name),
		GitHubURL:         registry.SourceURL(manifest),
	}
	if known != "" {
		report.KnownVersion = &known
	}
	if previous != nil {
		report.PreviousPublishedAt = doc.PublishedAt(*previous)
	}

	if n.tracking() {
		if err := n.History.SetWatchEntry(ctx, &core.WatchEntry{
			PackageName:       name,
			LatestVersion:     latest,
			LatestPublishedAt: report.LatestPublishedAt,
			PreviousVersion:   previous,
			ChangeType:        changeType,
			CheckedAt:         n.now(),
		}); err != nil {
			return nil, fmt.Errorf("write watch history: %w", err)
		}
	}

	if n.Logger != nil {
		n.Logger.Debug("Package checked",
			zap.String("package", name),
			zap.String("latest", latest),
			zap.Bool("changed", changed))
	}

	return report, nil
}

// fail records err for the host. It returns err when the run must stop.
func (n *Node) fail(ctx context.Context, host Host, err *ItemError) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	if !host.ContinueOnFail() {
		return err
	}

	if n.Logger != nil {
		n.Logger.Warn("Package lookup failed",
			zap.Int("item", err.ItemIndex),
			zap.String("package", err.PackageName),
			zap.Error(err.Err))
	}
	host.Emit(core.Record{Error: err.Err.Error()}, err.ItemIndex)
	return nil
}

func (n *Node) tracking() bool {
	return n.Track && n.History != nil
}

func (n *Node) now() time.Time {
	if n.Clock != nil {
		return n.Clock()
	}
	return time.Now().UTC()
}
