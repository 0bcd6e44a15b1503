// Package pipeline is the command front door: it validates typed
// parameters concurrently, resolves names to ids, dispatches to the
// entity actors, and shapes transport-neutral replies.
package pipeline

import (
	"context"
	"net/http"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/log"
	"github.com/gracevcs/grace-server/pkg/metrics"
	"github.com/gracevcs/grace-server/pkg/readmodel"
	"github.com/gracevcs/grace-server/pkg/resolve"
	"github.com/gracevcs/grace-server/pkg/types"
	"github.com/gracevcs/grace-server/pkg/validation"
)

// Pipeline processes every mutating and querying endpoint.
type Pipeline struct {
	host     *actorhost.Host
	resolver *resolve.Resolver
	index    *readmodel.Index
}

// New builds the pipeline over its collaborators.
func New(host *actorhost.Host, resolver *resolve.Resolver, index *readmodel.Index) *Pipeline {
	return &Pipeline{host: host, resolver: resolver, index: index}
}

// Response is the transport-neutral reply of one processed request.
// Ok carries the enriched return value; failures carry the localized
// message, the correlation id, and a parameter snapshot.
type Response struct {
	Status        int                `json:"-"`
	ReturnValue   *types.ReturnValue `json:"returnValue,omitempty"`
	Error         string             `json:"error,omitempty"`
	CorrelationID string             `json:"correlationId"`
	Properties    map[string]string  `json:"properties,omitempty"`
}

// Ok reports whether the request was accepted.
func (r *Response) Ok() bool { return r.Status == http.StatusOK }

func okResponse(rv *types.ReturnValue) *Response {
	return &Response{
		Status:        http.StatusOK,
		ReturnValue:   rv,
		CorrelationID: rv.CorrelationID,
	}
}

// failResponse shapes an error reply: the code's kind decides the
// status, and the snapshot of offending parameters rides along.
func failResponse(err error, correlationID string, snapshot map[string]string) *Response {
	code := errcode.CodeOf(err)
	props := make(map[string]string, len(snapshot)+1)
	for k, v := range snapshot {
		props[k] = v
	}
	if e, ok := err.(*errcode.Error); ok {
		for k, v := range e.Properties {
			props[k] = v
		}
		if e.CorrelationID != "" {
			correlationID = e.CorrelationID
		}
	}
	props["errorCode"] = string(code)
	return &Response{
		Status:        errcode.HTTPStatus(code),
		Error:         errcode.Message(code),
		CorrelationID: correlationID,
		Properties:    props,
	}
}

func failCode(code errcode.Code, correlationID string, snapshot map[string]string) *Response {
	return failResponse(errcode.New(code, correlationID), correlationID, snapshot)
}

// run wraps one command with validation, metrics, and error shaping.
func (p *Pipeline) run(ctx context.Context, class, correlationID string, snapshot map[string]string, checks []validation.Validation, dispatch func(ctx context.Context) (*types.ReturnValue, error)) *Response {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CommandDuration)

	if code := validation.FirstError(ctx, checks...); code != "" {
		metrics.CommandsTotal.WithLabelValues(class, "invalid").Inc()
		return failCode(code, correlationID, snapshot)
	}

	rv, err := dispatch(ctx)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(class, "error").Inc()
		logger := log.WithCorrelation(correlationID)
		logger.Debug().
			Str("class", class).
			Str("code", string(errcode.CodeOf(err))).
			Msg("command rejected")
		return failResponse(err, correlationID, snapshot)
	}
	metrics.CommandsTotal.WithLabelValues(class, "ok").Inc()
	return okResponse(rv)
}

// enrich copies resolved ancestor ids onto the return value.
func enrich(rv *types.ReturnValue, ids map[string]string) *types.ReturnValue {
	if rv == nil {
		return nil
	}
	if rv.Properties == nil {
		rv.Properties = make(map[string]string, len(ids))
	}
	for k, v := range ids {
		if v != "" {
			rv.Properties[k] = v
		}
	}
	return rv
}

// queryResponse shapes a read-only reply carrying a payload instead of
// a return value.
type QueryResponse[T any] struct {
	Status        int    `json:"-"`
	Result        T      `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func queryOk[T any](result T) *QueryResponse[T] {
	return &QueryResponse[T]{Status: http.StatusOK, Result: result}
}

func queryFail[T any](err error, correlationID string) *QueryResponse[T] {
	code := errcode.CodeOf(err)
	return &QueryResponse[T]{
		Status:        errcode.HTTPStatus(code),
		Error:         errcode.Message(code),
		CorrelationID: correlationID,
	}
}
