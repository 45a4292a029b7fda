package registry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedClient wraps a Client with a span per registry operation.
type tracedClient struct {
	inner  Client
	tracer trace.Tracer
}

// NewTracedClient wraps inner so every operation runs under its own span.
// If tracer is nil, inner is returned unwrapped.
func NewTracedClient(inner Client, tracer trace.Tracer) Client {
	if tracer == nil {
		return inner
	}
	return &tracedClient{inner: inner, tracer: tracer}
}

var _ Client = (*tracedClient)(nil)

// truncateIMEI shortens an identifier for span attributes so full
// identifiers never land in trace storage.
func truncateIMEI(imei string) string {
	if len(imei) <= 8 {
		return imei
	}
	return imei[:8] + "..."
}

func (c *tracedClient) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// finish records the outcome on the span and ends it.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (c *tracedClient) Verify(ctx context.Context, imei string) (VerificationResult, error) {
	ctx, span := c.start(ctx, "registry.verify",
		attribute.String("registry.imei", truncateIMEI(imei)),
	)
	result, err := c.inner.Verify(ctx, imei)
	if err == nil {
		span.SetAttributes(attribute.Bool("registry.exists", result.Exists))
	}
	finish(span, err)
	return result, err
}

func (c *tracedClient) Companies(ctx context.Context) ([]Company, error) {
	ctx, span := c.start(ctx, "registry.companies")
	companies, err := c.inner.Companies(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("registry.count", len(companies)))
	}
	finish(span, err)
	return companies, err
}

func (c *tracedClient) PersonsByCompany(ctx context.Context, companyID string) ([]Person, error) {
	ctx, span := c.start(ctx, "registry.persons_by_company",
		attribute.String("registry.company_id", companyID),
	)
	persons, err := c.inner.PersonsByCompany(ctx, companyID)
	if err == nil {
		span.SetAttributes(attribute.Int("registry.count", len(persons)))
	}
	finish(span, err)
	return persons, err
}

func (c *tracedClient) CreatePerson(ctx context.Context, person NewPerson) (Person, error) {
	ctx, span := c.start(ctx, "registry.create_person",
		attribute.String("registry.company_id", person.CompanyID),
	)
	created, err := c.inner.CreatePerson(ctx, person)
	finish(span, err)
	return created, err
}

func (c *tracedClient) Register(ctx context.Context, imei, personID string) (Device, error) {
	ctx, span := c.start(ctx, "registry.register",
		attribute.String("registry.imei", truncateIMEI(imei)),
		attribute.String("registry.person_id", personID),
	)
	device, err := c.inner.Register(ctx, imei, personID)
	finish(span, err)
	return device, err
}
