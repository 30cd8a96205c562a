package domain

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/integration-os/core/internal/ioserr"
)

// Source identifies the inbound event shape a Pipeline subscribes to.
// A pipeline is selected by matching Source.Type against the event's type,
// the event's name against Source.Events, and the access record's group
// against Source.Group.
type Source struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
	Group  string   `json:"group"`
}

// Matches reports whether this Source subscribes to an event with the
// given type, name, and access group.
func (s Source) Matches(eventType, eventName, group string) bool {
	if s.Type != eventType || s.Group != group {
		return false
	}

	for _, name := range s.Events {
		if name == eventName {
			return true
		}
	}

	return false
}

// RetryPolicy bounds the number of attempts and the wait between them for
// a single extractor or destination call.
type RetryPolicy struct {
	MaximumAttempts uint64 `json:"maximumAttempts"`
	InitialInterval string `json:"initialInterval"`
}

// GetInterval parses InitialInterval, a string of the form
// "<N> <seconds|second|minutes|minute>". Parsing failure is a
// configuration error, rejected at pipeline load, never at run time.
func (p RetryPolicy) GetInterval() (time.Duration, error) {
	parts := strings.Split(p.InitialInterval, " ")
	if len(parts) == 0 || parts[0] == "" {
		return 0, ioserr.New(ioserr.ConfigurationErr, "no number in retry policy interval")
	}

	num, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, ioserr.Wrap(ioserr.ConfigurationErr, "invalid retry policy interval number", err)
	}

	if len(parts) < 2 || parts[1] == "" {
		return 0, ioserr.New(ioserr.ConfigurationErr, "no amount in retry policy interval")
	}

	switch parts[1] {
	case "second", "seconds":
		return time.Duration(num) * time.Second, nil
	case "minute", "minutes":
		return time.Duration(num) * time.Minute, nil
	default:
		return 0, ioserr.New(ioserr.ConfigurationErr, "invalid retry policy interval amount: "+parts[1])
	}
}

// Policies wraps the retry behavior attached to an extractor or
// destination call.
type Policies struct {
	Retry RetryPolicy `json:"retry"`
}

// HttpExtractor is an HTTP call made to collect data prior to the
// destination call. Headers and Data are mustache-style templates
// resolved against prior extractor outputs and the event payload.
type HttpExtractor struct {
	Key                 string   `json:"key"`
	URL                 string   `json:"url"`
	Method              string   `json:"method"`
	Headers             string   `json:"headers"`
	Data                string   `json:"data"`
	Policies            Policies `json:"policies"`
	StartToCloseTimeout string   `json:"startToCloseTimeout"`
}

// Timeout parses StartToCloseTimeout using the same grammar as
// RetryPolicy.InitialInterval.
func (h HttpExtractor) Timeout() (time.Duration, error) {
	return RetryPolicy{InitialInterval: h.StartToCloseTimeout}.GetInterval()
}

// Middleware is one step of a pipeline's processing chain: either a pure
// in-process transform or an HTTP extractor. Exactly one of Transformer or
// HTTPExtractor is populated, discriminated by Type.
type Middleware struct {
	Type          string          `json:"_type"`
	HTTPExtractor *HttpExtractor  `json:"httpExtractor,omitempty"`
	Transformer   *TransformerDef `json:"transformer,omitempty"`
}

const (
	MiddlewareHTTPExtractor = "extractor::http"
	MiddlewareTransformer   = "transformer"
)

// TransformerDef evaluates a pure function over the current extractor
// output map. Language and Code are opaque to the dispatcher.
type TransformerDef struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Signature describes how a pipeline's destination requests are signed.
type Signature struct {
	Header    string    `json:"header"`
	Algorithm string    `json:"algorithm"`
	Secrets   [2]string `json:"secrets"`
}

// Destination is the terminal HTTP call of a pipeline.
type Destination struct {
	Key                 string   `json:"key"`
	URL                 string   `json:"url"`
	Method              string   `json:"method"`
	Headers             string   `json:"headers"`
	Data                string   `json:"data"`
	Policies            Policies `json:"policies"`
	StartToCloseTimeout string   `json:"startToCloseTimeout"`
}

// Timeout parses StartToCloseTimeout using the same grammar as
// RetryPolicy.InitialInterval.
func (d Destination) Timeout() (time.Duration, error) {
	return RetryPolicy{InitialInterval: d.StartToCloseTimeout}.GetInterval()
}

// PipelineConfig carries pipeline-level delivery settings that apply to
// the destination call as a whole.
type PipelineConfig struct {
	StartToCloseTimeout string `json:"startToCloseTimeout"`
}

// Pipeline is a named, tenant-owned orchestration of extractors and a
// destination, selected by event Source tuple.
type Pipeline struct {
	ID           Id              `json:"_id"`
	Environment  Environment     `json:"environment"`
	Name         string          `json:"name"`
	Key          string          `json:"key"`
	Source       Source          `json:"source"`
	Destination  Destination     `json:"destination"`
	Middleware   []Middleware    `json:"middleware"`
	Ownership    Ownership       `json:"ownership"`
	Signature    Signature       `json:"signature"`
	Config       *PipelineConfig `json:"config,omitempty"`
	RecordMetadata
}

// NormalizeMethod upper-cases an HTTP method string, defaulting to GET
// for an empty value, matching net/http's own convention.
func NormalizeMethod(method string) string {
	if method == "" {
		return http.MethodGet
	}

	return strings.ToUpper(method)
}
