package watch

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/npmwatch/npmwatch/internal/core"
)

// Parameter names read from the host.
const (
	ParamPackages     = "packages"
	ParamPackageName  = "packageName"
	ParamKnownVersion = "knownVersion"
)

// Queries reads the package queries configured for one item. The
// multi-package "packages" collection is preferred; an item that only carries
// the single-package "packageName"/"knownVersion" pair is read as a collection
// of one. An item with neither parameter has an empty collection.
func Queries(host Host, itemIndex int) ([]core.PackageQuery, error) {
	raw, err := host.Parameter(ParamPackages, itemIndex, nil)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		return DecodePackages(raw)
	}

	name, err := host.Parameter(ParamPackageName, itemIndex, nil)
	if err != nil {
		return nil, err
	}
	if name == nil {
		return nil, nil
	}
	known, err := host.Parameter(ParamKnownVersion, itemIndex, "")
	if err != nil {
		return nil, err
	}

	query := core.PackageQuery{}
	if err := decode(map[string]any{
		ParamPackageName:  name,
		ParamKnownVersion: known,
	}, &query); err != nil {
		return nil, err
	}
	return []core.PackageQuery{query}, nil
}

// DecodePackages converts a "packages" parameter value into queries. It
// accepts a PackageCollection (typed or as a generic map), a bare list of
// entries, or a single package name string.
func DecodePackages(raw any) ([]core.PackageQuery, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case core.PackageCollection:
		return value.PackageEntry, nil
	case *core.PackageCollection:
		if value == nil {
			return nil, nil
		}
		return value.PackageEntry, nil
	case []core.PackageQuery:
		return value, nil
	case string:
		if strings.TrimSpace(value) == "" {
			return nil, nil
		}
		return []core.PackageQuery{{PackageName: value}}, nil
	case []any:
		var queries []core.PackageQuery
		if err := decode(value, &queries); err != nil {
			return nil, err
		}
		return queries, nil
	}

	var collection core.PackageCollection
	if err := decode(raw, &collection); err != nil {
		return nil, err
	}
	return collection.PackageEntry, nil
}

func decode(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("invalid %s parameter: %w", ParamPackages, err)
	}
	return nil
}
