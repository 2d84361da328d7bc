package logging

import (
	"maps"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ResourceKind groups external resources in the startup report.
type ResourceKind string

const (
	KindDynamoTable ResourceKind = "dynamoTables"
	KindS3Bucket    ResourceKind = "s3Buckets"
	KindSSMParam    ResourceKind = "ssmParams"
	KindEventBus    ResourceKind = "eventBuses"
	KindDirectory   ResourceKind = "directories"
)

// StartupReport describes how an instance was wired: its build identity,
// the resources it talks to, which optional features are on and the
// non-secret settings. It is logged once per process.
type StartupReport struct {
	Name       string
	CommitHash string
	BuildTime  string
	Took       time.Duration

	resources map[ResourceKind]map[string]string
	features  map[string]bool
	settings  map[string]string
}

// NewStartupReport starts a report for the named binary.
func NewStartupReport(name string) *StartupReport {
	return &StartupReport{
		Name:      name,
		resources: map[ResourceKind]map[string]string{},
		features:  map[string]bool{},
		settings:  map[string]string{},
	}
}

// Resource records a resource under kind. Unset (empty) names are left out.
// SSM entries are parameter paths; their values never reach the report.
func (r *StartupReport) Resource(kind ResourceKind, label, name string) *StartupReport {
	if name == "" {
		return r
	}
	if r.resources[kind] == nil {
		r.resources[kind] = map[string]string{}
	}
	r.resources[kind][label] = name
	return r
}

// Feature records whether an optional feature is on.
func (r *StartupReport) Feature(name string, on bool) *StartupReport {
	r.features[name] = on
	return r
}

// Setting records a non-secret configuration value.
func (r *StartupReport) Setting(key, value string) *StartupReport {
	r.settings[key] = value
	return r
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (r *StartupReport) MarshalZerologObject(e *zerolog.Event) {
	host, _ := os.Hostname()
	proc := zerolog.Dict().
		Str("name", r.Name).
		Str("host", host).
		Int("pid", os.Getpid()).
		Str("go", runtime.Version()).
		Int("cpus", runtime.NumCPU())
	if r.CommitHash != "" {
		proc.Str("commitHash", r.CommitHash)
	}
	if r.BuildTime != "" {
		proc.Str("buildTime", r.BuildTime)
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		proc.Str("functionName", fn).Str("region", os.Getenv("AWS_REGION"))
	}
	e.Dict("process", proc)

	if len(r.resources) > 0 {
		res := zerolog.Dict()
		for _, kind := range slices.Sorted(maps.Keys(r.resources)) {
			res.Dict(string(kind), strDict(r.resources[kind]))
		}
		e.Dict("resources", res)
	}
	if len(r.features) > 0 {
		feat := zerolog.Dict()
		for _, k := range slices.Sorted(maps.Keys(r.features)) {
			feat.Bool(k, r.features[k])
		}
		e.Dict("features", feat)
	}
	if len(r.settings) > 0 {
		e.Dict("config", strDict(r.settings))
	}
	if r.Took > 0 {
		e.Dur("initDuration", r.Took)
	}
}

// Log writes the report as one INFO event on the global logger.
func (r *StartupReport) Log() {
	log.Info().EmbedObject(r).Msg("Startup complete")
}

func strDict(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range slices.Sorted(maps.Keys(m)) {
		d.Str(k, m[k])
	}
	return d
}
