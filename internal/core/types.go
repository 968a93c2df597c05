package core

import "encoding/json"

// NotFound is reported as the source URL when a package declares neither a
// homepage nor a repository.
const NotFound = "Not found"

// ChangeType classifies the difference between a known and a latest version.
type ChangeType string

const (
	ChangeMajor      ChangeType = "major"
	ChangeMinor      ChangeType = "minor"
	ChangePatch      ChangeType = "patch"
	ChangePremajor   ChangeType = "premajor"
	ChangePreminor   ChangeType = "preminor"
	ChangePrepatch   ChangeType = "prepatch"
	ChangePrerelease ChangeType = "prerelease"
	ChangeUnknown    ChangeType = "unknown"
)

// PackageQuery is a single package to look up, as configured on an input item.
type PackageQuery struct {
	PackageName  string `json:"packageName" yaml:"packageName" toml:"packageName" mapstructure:"packageName"`
	KnownVersion string `json:"knownVersion,omitempty" yaml:"knownVersion,omitempty" toml:"knownVersion,omitempty" mapstructure:"knownVersion"`
}

// PackageCollection is the shape of the "packages" node parameter.
type PackageCollection struct {
	PackageEntry []PackageQuery `json:"packageEntry" yaml:"packageEntry" toml:"packageEntry" mapstructure:"packageEntry"`
}

// Repository is the repository field of an npm version manifest. The registry
// serves either an object or a bare shorthand string.
type Repository struct {
	Type      string `json:"type,omitempty"`
	URL       string `json:"url,omitempty"`
	Directory string `json:"directory,omitempty"`
}

// VersionManifest holds the per-version metadata fields npmwatch reads.
type VersionManifest struct {
	Name       string      `json:"name,omitempty"`
	Version    string      `json:"version,omitempty"`
	Homepage   string      `json:"homepage,omitempty"`
	Repository *Repository `json:"repository,omitempty"`
}

// RegistryDocument is the packument served by the npm registry for a package.
type RegistryDocument struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]VersionManifest `json:"versions"`
	Time     map[string]string          `json:"time"`
}

// UnmarshalJSON decodes a packument leniently. Registry documents carry years
// of legacy shapes (unpublished markers in time, array homepages and
// repositories on old versions), so fields of an unexpected shape read as
// absent instead of failing the document. Only a body that is not a JSON
// object is an error.
func (d *RegistryDocument) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	doc := RegistryDocument{
		Name:     rawString(fields["name"]),
		DistTags: rawStringMap(fields["dist-tags"]),
		Time:     rawStringMap(fields["time"]),
	}
	if versions := rawObject(fields["versions"]); len(versions) > 0 {
		doc.Versions = make(map[string]VersionManifest, len(versions))
		for key, raw := range versions {
			doc.Versions[key] = manifestFromRaw(raw)
		}
	}
	*d = doc
	return nil
}

func manifestFromRaw(raw json.RawMessage) VersionManifest {
	fields := rawObject(raw)
	return VersionManifest{
		Name:       rawString(fields["name"]),
		Version:    rawString(fields["version"]),
		Homepage:   rawString(fields["homepage"]),
		Repository: repositoryFromRaw(fields["repository"]),
	}
}

// repositoryFromRaw accepts the string and object forms. A legacy array
// contributes its first usable entry.
func repositoryFromRaw(raw json.RawMessage) *Repository {
	if len(raw) == 0 {
		return nil
	}
	if shorthand := rawString(raw); shorthand != "" {
		return &Repository{URL: shorthand}
	}
	if fields := rawObject(raw); fields != nil {
		repo := &Repository{
			Type:      rawString(fields["type"]),
			URL:       rawString(fields["url"]),
			Directory: rawString(fields["directory"]),
		}
		if repo.URL == "" && repo.Type == "" && repo.Directory == "" {
			return nil
		}
		return repo
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, entry := range list {
			if repo := repositoryFromRaw(entry); repo != nil {
				return repo
			}
		}
	}
	return nil
}

func rawString(raw json.RawMessage) string {
	var value string
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil {
		return ""
	}
	return value
}

func rawObject(raw json.RawMessage) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil {
		return nil
	}
	return fields
}

// rawStringMap keeps the string-valued members of an object.
func rawStringMap(raw json.RawMessage) map[string]string {
	fields := rawObject(raw)
	if fields == nil {
		return nil
	}
	values := make(map[string]string, len(fields))
	for key, member := range fields {
		var value string
		if json.Unmarshal(member, &value) == nil {
			values[key] = value
		}
	}
	return values
}

// Latest returns the version the "latest" dist-tag points at.
func (d *RegistryDocument) Latest() string {
	if d == nil || d.DistTags == nil {
		return ""
	}
	return d.DistTags["latest"]
}

// PublishedAt returns the publish timestamp recorded for a version, if any.
func (d *RegistryDocument) PublishedAt(version string) *string {
	if d == nil || d.Time == nil || version == "" {
		return nil
	}
	value, ok := d.Time[version]
	if !ok || value == "" {
		return nil
	}
	return &value
}

// VersionList returns every published version key.
func (d *RegistryDocument) VersionList() []string {
	if d == nil {
		return nil
	}
	versions := make([]string, 0, len(d.Versions))
	for v := range d.Versions {
		versions = append(versions, v)
	}
	return versions
}

// ChangeReport is emitted once per successfully processed package query.
type ChangeReport struct {
	PackageName         string      `json:"packageName"`
	LatestVersion       string      `json:"latestVersion"`
	LatestPublishedAt   *string     `json:"latestPublishedAt"`
	KnownVersion        *string     `json:"knownVersion"`
	HasChanged          bool        `json:"hasChanged"`
	ChangeType          *ChangeType `json:"changeType"`
	PreviousVersion     *string     `json:"previousVersion"`
	PreviousPublishedAt *string     `json:"previousPublishedAt"`
	NPMURL              string      `json:"npmUrl"`
	GitHubURL           string      `json:"githubUrl"`
}

// PairedItem links an output record back to the input item that produced it.
type PairedItem struct {
	Item int `json:"item"`
}

// Record is a single node output: a change report or an error message,
// always paired with its originating item.
type Record struct {
	Report     *ChangeReport
	Error      string
	PairedItem PairedItem
}

// IsError reports whether the record carries a failure instead of a report.
func (r Record) IsError() bool {
	return r.Report == nil
}

type recordJSON struct {
	JSON       json.RawMessage `json:"json"`
	PairedItem PairedItem      `json:"pairedItem"`
}

// MarshalJSON renders the record in workflow-item form:
// {"json": {...}, "pairedItem": {"item": n}}.
func (r Record) MarshalJSON() ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	if r.Report != nil {
		payload, err = json.Marshal(r.Report)
	} else {
		payload, err = json.Marshal(map[string]string{"error": r.Error})
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordJSON{JSON: payload, PairedItem: r.PairedItem})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.PairedItem = raw.PairedItem

	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(raw.JSON, &probe); err != nil {
		return err
	}
	if probe.Error != nil {
		r.Error = *probe.Error
		r.Report = nil
		return nil
	}

	var report ChangeReport
	if err := json.Unmarshal(raw.JSON, &report); err != nil {
		return err
	}
	r.Report = &report
	r.Error = ""
	return nil
}
