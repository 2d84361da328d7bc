// Package metrics writes CloudWatch Embedded Metric Format (EMF) lines.
// Under Lambda, CloudWatch Logs lifts the metrics out of stdout; elsewhere
// the lines are plain JSON and can be discarded with SetOutput.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"time"
)

// Namespace is the CloudWatch namespace for every metric this service emits.
const Namespace = "iDgimot"

// Unit is a CloudWatch metric unit.
type Unit string

const (
	UnitMilliseconds Unit = "Milliseconds"
	UnitCount        Unit = "Count"
	UnitBytes        Unit = "Bytes"
	UnitNone         Unit = "None"
)

// lambdaDimension is attached to every line when running under Lambda.
const lambdaDimension = "FunctionName"

type sample struct {
	value float64
	unit  Unit
}

// Recorder collects one EMF line. Build it with the chained setters and
// call Flush once. A Recorder is not safe for concurrent use.
type Recorder struct {
	namespace string
	dims      map[string]string
	samples   map[string]sample
	props     map[string]any
	now       func() time.Time
}

var (
	sink = struct {
		sync.Mutex
		w io.Writer
	}{w: os.Stdout}

	lambdaName = sync.OnceValue(func() string { return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") })
)

// SetOutput sends subsequent lines to w. A nil w discards them.
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	sink.Lock()
	sink.w = w
	sink.Unlock()
}

// New starts a line in namespace.
func New(namespace string) *Recorder {
	r := &Recorder{
		namespace: namespace,
		dims:      map[string]string{},
		samples:   map[string]sample{},
		props:     map[string]any{},
		now:       time.Now,
	}
	if fn := lambdaName(); fn != "" {
		r.dims[lambdaDimension] = fn
	}
	return r
}

// Dimension adds a filterable attribute.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dims[key] = value
	return r
}

// Metric records value in unit under name, replacing any earlier value.
func (r *Recorder) Metric(name string, value float64, unit Unit) *Recorder {
	r.samples[name] = sample{value: value, unit: unit}
	return r
}

// Duration records d in milliseconds.
func (r *Recorder) Duration(name string, d time.Duration) *Recorder {
	return r.Metric(name, float64(d.Milliseconds()), UnitMilliseconds)
}

// Bytes records a size.
func (r *Recorder) Bytes(name string, n int64) *Recorder {
	return r.Metric(name, float64(n), UnitBytes)
}

// Count records a single occurrence.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a searchable field that is not a metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.props[key] = value
	return r
}

// document renders the line, or nil when no metric was recorded.
// Dimension and metric names are sorted so output is stable.
func (r *Recorder) document() map[string]any {
	if len(r.samples) == 0 {
		return nil
	}

	type metricRef struct {
		Name string `json:"Name"`
		Unit Unit   `json:"Unit"`
	}
	names := slices.Sorted(maps.Keys(r.samples))
	refs := make([]metricRef, len(names))
	for i, name := range names {
		refs[i] = metricRef{Name: name, Unit: r.samples[name].unit}
	}

	dimNames := append([]string{}, slices.Sorted(maps.Keys(r.dims))...)

	doc := make(map[string]any, 1+len(r.props)+len(r.dims)+len(r.samples))
	// Properties first so a clashing dimension or metric name wins.
	for k, v := range r.props {
		doc[k] = v
	}
	for k, v := range r.dims {
		doc[k] = v
	}
	for name, s := range r.samples {
		doc[name] = s.value
	}
	doc["_aws"] = map[string]any{
		"Timestamp": r.now().UnixMilli(),
		"CloudWatchMetrics": []map[string]any{{
			"Namespace":  r.namespace,
			"Dimensions": [][]string{dimNames},
			"Metrics":    refs,
		}},
	}
	return doc
}

// Flush writes the line. Nothing is written when no metric was recorded.
func (r *Recorder) Flush() {
	doc := r.document()
	if doc == nil {
		return
	}
	line, err := json.Marshal(doc)
	if err != nil {
		// Only reachable through an unencodable Property value.
		return
	}
	line = append(line, '\n')

	sink.Lock()
	defer sink.Unlock()
	sink.w.Write(line)
}
