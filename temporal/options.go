package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/interceptor"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/relaypoint/dispatch"
	"github.com/relaypoint/dispatch/telemetry"
)

// Option customizes a Temporal executor at construction time.
type Option func(*Executor)

// WithClient injects a pre-built WorkflowClient, typically a test double or a
// Wrap-adapted client with custom interceptors. The client is shared, not
// owned: Close leaves it open.
func WithClient(c WorkflowClient) Option {
	return func(e *Executor) { e.client = c }
}

// WithTemporalClient injects a concrete Temporal client. Unlike WithClient
// this also enables worker management, which needs the raw client. The client
// is shared, not owned.
func WithTemporalClient(c client.Client) Option {
	return func(e *Executor) {
		e.raw = c
		e.client = Wrap(c)
	}
}

// WithLogger emits executor and worker logs through l.
func WithLogger(l telemetry.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics records executor metrics through m.
func WithMetrics(m telemetry.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer spans workflow start and execute calls through t. This is the
// executor-level view; SDK-internal tracing is governed by
// WithInstrumentation.
func WithTracer(tr telemetry.Tracer) Option {
	return func(e *Executor) { e.tracer = tr }
}

// WithWorkerOptions forwards o to Temporal's worker constructor for every
// task queue the executor manages.
func WithWorkerOptions(o worker.Options) Option {
	return func(e *Executor) { e.workerOpts = o }
}

// WithoutWorkerAutoStart disables automatic worker startup on first workflow
// start. Use Worker().Start() to control worker lifecycle manually.
func WithoutWorkerAutoStart() Option {
	return func(e *Executor) { e.autoStartDisabled = true }
}

// WithInstrumentation customizes how OTEL tracing and metrics are wired into
// the client and workers. Both are enabled by default.
func WithInstrumentation(o InstrumentationOptions) Option {
	return func(e *Executor) { e.inst = o }
}

// WithDialOptions forwards gRPC dial options to the client connection when
// the executor dials one from configuration.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(e *Executor) { e.dialOpts = append(e.dialOpts, opts...) }
}

// WithDataConverter sets the payload converter used by a client dialed from
// configuration. See NewMsgpackDataConverter for a MessagePack codec.
func WithDataConverter(dc converter.DataConverter) Option {
	return func(e *Executor) { e.dataConverter = dc }
}

// WithStartRateLimit throttles workflow start calls client-side. Zero burst
// disables the limiter.
func WithStartRateLimit(limit rate.Limit, burst int) Option {
	return func(e *Executor) {
		if burst > 0 {
			e.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// InstrumentationOptions configures the OTEL tracing interceptor and metrics
// handler installed on the Temporal client and workers. Tracing and metrics
// are enabled by default; set the Disable flags to opt out.
type InstrumentationOptions struct {
	// DisableTracing skips installing the OTEL tracing interceptor.
	DisableTracing bool

	// DisableMetrics skips installing the OTEL metrics handler.
	DisableMetrics bool

	// TracerOptions customize the tracing interceptor.
	TracerOptions temporalotel.TracerOptions

	// MetricsOptions customize the metrics handler.
	MetricsOptions temporalotel.MetricsHandlerOptions
}

type instrumentation struct {
	tracer  interceptor.Interceptor
	metrics client.MetricsHandler
}

func configureInstrumentation(opts InstrumentationOptions) (*instrumentation, error) {
	inst := &instrumentation{}
	if !opts.DisableTracing {
		tracer, err := temporalotel.NewTracingInterceptor(opts.TracerOptions)
		if err != nil {
			return nil, fmt.Errorf("configure tracing interceptor: %w", err)
		}
		inst.tracer = tracer
	}
	if !opts.DisableMetrics {
		inst.metrics = temporalotel.NewMetricsHandler(opts.MetricsOptions)
	}
	if inst.tracer == nil && inst.metrics == nil {
		return nil, nil
	}
	return inst, nil
}

func applyClientInstrumentation(opts *client.Options, inst *instrumentation) {
	if inst == nil {
		return
	}
	if inst.tracer != nil {
		opts.Interceptors = append(opts.Interceptors, inst.tracer)
	}
	if inst.metrics != nil && opts.MetricsHandler == nil {
		opts.MetricsHandler = inst.metrics
	}
}

func applyWorkerInstrumentation(opts *worker.Options, inst *instrumentation) {
	if inst == nil {
		return
	}
	if inst.tracer != nil {
		opts.Interceptors = append(opts.Interceptors, inst.tracer)
	}
}

// convertRetryPolicy maps the engine-agnostic retry policy onto Temporal's.
// A zero-valued policy maps to nil so the engine applies its defaults.
func convertRetryPolicy(r dispatch.RetryPolicy) *temporalsdk.RetryPolicy {
	if r.MaxAttempts == 0 && r.InitialInterval == 0 && r.BackoffCoefficient == 0 {
		return nil
	}
	policy := &temporalsdk.RetryPolicy{}
	if r.MaxAttempts > 0 {
		policy.MaximumAttempts = int32(r.MaxAttempts)
	}
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	if r.BackoffCoefficient > 0 {
		policy.BackoffCoefficient = r.BackoffCoefficient
	}
	return policy
}

func mergeTaskOptions(base, override dispatch.TaskOptions) dispatch.TaskOptions {
	result := base
	if override.Queue != "" {
		result.Queue = override.Queue
	}
	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	result.RetryPolicy = mergeRetryPolicies(base.RetryPolicy, override.RetryPolicy)
	return result
}

func mergeRetryPolicies(base, override dispatch.RetryPolicy) dispatch.RetryPolicy {
	result := base
	if override.MaxAttempts != 0 {
		result.MaxAttempts = override.MaxAttempts
	}
	if override.InitialInterval != 0 {
		result.InitialInterval = override.InitialInterval
	}
	if override.BackoffCoefficient != 0 {
		result.BackoffCoefficient = override.BackoffCoefficient
	}
	return result
}

// defaultTaskTimeout bounds a single task execution when neither the task nor
// the call specifies one. Temporal rejects activities without any timeout.
const defaultTaskTimeout = time.Minute
